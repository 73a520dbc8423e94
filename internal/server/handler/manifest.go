package handler

import (
	"net/http"

	"github.com/whalebounty/whalebounty/internal/config"
)

// ManifestHandler serves the mini-app manifest. The document is built once;
// it only changes with configuration.
type ManifestHandler struct {
	body map[string]any
}

// NewManifestHandler renders cfg into the manifest document.
func NewManifestHandler(cfg config.ManifestConfig) *ManifestHandler {
	aa := cfg.AccountAssociation
	m := cfg.MiniApp
	return &ManifestHandler{body: map[string]any{
		"accountAssociation": withValidProperties(map[string]any{
			"header":    aa.Header,
			"payload":   aa.Payload,
			"signature": aa.Signature,
		}),
		"miniapp": withValidProperties(map[string]any{
			"version":               m.Version,
			"name":                  m.Name,
			"homeUrl":               m.HomeURL,
			"iconUrl":               m.IconURL,
			"splashImageUrl":        m.SplashImageURL,
			"splashBackgroundColor": m.SplashBackgroundColor,
			"webhookUrl":            m.WebhookURL,
			"subtitle":              m.Subtitle,
			"description":           m.Description,
			"screenshotUrls":        m.ScreenshotURLs,
			"primaryCategory":       m.PrimaryCategory,
			"tags":                  m.Tags,
			"heroImageUrl":          m.HeroImageURL,
			"tagline":               m.Tagline,
			"ogTitle":               m.OGTitle,
			"ogDescription":         m.OGDescription,
			"ogImageUrl":            m.OGImageURL,
			"noindex":               m.NoIndex,
		}),
	}}
}

// Manifest returns the manifest document.
// GET /.well-known/farcaster.json
func (h *ManifestHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, h.body)
}

// withValidProperties drops empty strings, empty lists and false flags.
func withValidProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		switch val := v.(type) {
		case string:
			if val == "" {
				continue
			}
		case []string:
			if len(val) == 0 {
				continue
			}
		case bool:
			if !val {
				continue
			}
		}
		out[k] = v
	}
	return out
}
