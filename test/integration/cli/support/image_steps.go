package support

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/utils"
)

func (testCtx *TestContext) saveImage(name string, img image.Image) error {
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return utils.SaveImage(path, img)
}

func (testCtx *TestContext) aQRImageContaining(name, payload string) error {
	req := qrgen.DefaultRequest(payload)
	req.ModuleSize = 4
	res, err := qrgen.Encode(req)
	if err != nil {
		return fmt.Errorf("encode %q: %w", payload, err)
	}
	return testCtx.saveImage(name, res.Image)
}

func (testCtx *TestContext) aBarcodeImageContaining(name, kind, payload string) error {
	k, err := qrgen.ParseLinearKind(kind)
	if err != nil {
		return err
	}
	img, err := qrgen.EncodeLinear(qrgen.LinearRequest{Payload: payload, Kind: k})
	if err != nil {
		return err
	}
	return testCtx.saveImage(name, img)
}

func (testCtx *TestContext) aBlankImage(name string) error {
	return testCtx.saveImage(name, imaging.New(160, 160, color.White))
}

func (testCtx *TestContext) aFileContaining(name, content string) error {
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

// RegisterImageSteps registers steps that create input files.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a QR image "([^"]*)" containing "([^"]*)"$`, testCtx.aQRImageContaining)
	sc.Step(`^a barcode image "([^"]*)" of type "([^"]*)" containing "([^"]*)"$`, testCtx.aBarcodeImageContaining)
	sc.Step(`^a blank image "([^"]*)"$`, testCtx.aBlankImage)
	sc.Step(`^a file "([^"]*)" containing "([^"]*)"$`, testCtx.aFileContaining)
}
