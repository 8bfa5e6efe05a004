package llm

import (
	"encoding/base64"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/clauselens/clauselens/constants"
)

// ShouldAttachFile decides whether the extractor should send the page image itself
// instead of low-confidence OCR text. Returns the raw base64 payload and mime type
// ready for an inline_data part.
func ShouldAttachFile(req ExtractRequest) (attach bool, data, mimeType string) {
	attach = req.FilePath != "" &&
		constants.MapExtToFormat(filepath.Ext(req.FilePath)) == constants.IMAGE &&
		req.PrepConfidence < constants.ImageConfidenceThreshold

	if !attach {
		return false, "", ""
	}

	// size gate
	if st, err := os.Stat(req.FilePath); err != nil || st.IsDir() ||
		st.Size() > int64(constants.MaxVisionMB)*1024*1024 {
		return false, "", ""
	}

	b64, mt, err := readAsBase64(req.FilePath)
	if err != nil {
		return false, "", ""
	}
	return true, b64, mt
}

func readAsBase64(path string) (string, string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	mt := mime.TypeByExtension("." + ext)
	if mt == "" {
		// fallbacks
		switch ext {
		case "jpg", "jpeg":
			mt = "image/jpeg"
		case "png":
			mt = "image/png"
		default:
			mt = "application/octet-stream"
		}
	}
	return base64.StdEncoding.EncodeToString(b), mt, nil
}
