package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/pallav-m/surya-isolation/internal/config"
	"github.com/pallav-m/surya-isolation/internal/predictor"
)

// BuildEngine wires an engine from the configured backends. Predictor
// construction happens here, once, at process start.
func BuildEngine(ctx context.Context, cfg *config.Config) (*Engine, error) {
	var det predictor.TextDetector
	var rec predictor.TextRecognizer
	var lay predictor.LayoutAnalyzer
	var tab predictor.TableRecognizer

	switch cfg.ModelBackend {
	case config.BackendMock:
		mock := predictor.NewMock()
		det, rec, lay, tab = mock, mock, mock, mock
	case config.BackendRemote:
		remote := predictor.NewRemoteClient(predictor.RemoteConfig{
			BaseURL:              strings.TrimRight(cfg.ModelServerURL, "/"),
			Timeout:              cfg.RequestTimeout,
			DetectionBatchSize:   cfg.DetectionBatchSize,
			RecognitionBatchSize: cfg.RecognitionBatchSize,
			LayoutBatchSize:      cfg.LayoutBatchSize,
			TableRecBatchSize:    cfg.TableRecBatchSize,
			TorchDevice:          cfg.TorchDevice,
			BlankThreshold:       cfg.DetectorBlankThreshold,
			TextThreshold:        cfg.DetectorTextThreshold,
			DisableMath:          cfg.DisableMath,
		})
		det, rec, lay, tab = remote, remote, remote, remote
	default:
		return nil, fmt.Errorf("unsupported model backend %q", cfg.ModelBackend)
	}

	switch cfg.OCRBackend {
	case "":
	case config.BackendTesseract:
		tess := predictor.NewTesseractBackend(splitLanguages(cfg.TesseractLanguages)...)
		det, rec = tess, tess
	case config.BackendVision:
		visionBackend, err := predictor.NewVisionBackend(ctx)
		if err != nil {
			return nil, fmt.Errorf("create vision backend: %w", err)
		}
		det, rec = visionBackend, visionBackend
	default:
		return nil, fmt.Errorf("unsupported OCR backend %q", cfg.OCRBackend)
	}

	switch cfg.TableBackend {
	case "":
	case config.BackendDocumentAI:
		docai, err := predictor.NewDocumentAIBackend(ctx)
		if err != nil {
			return nil, fmt.Errorf("create documentai backend: %w", err)
		}
		tab = docai
	default:
		return nil, fmt.Errorf("unsupported table backend %q", cfg.TableBackend)
	}

	return New(det, rec, lay, tab), nil
}

func splitLanguages(s string) []string {
	if s == "" {
		return nil
	}
	var langs []string
	for _, lang := range strings.Split(s, ",") {
		if lang = strings.TrimSpace(lang); lang != "" {
			langs = append(langs, lang)
		}
	}
	return langs
}
