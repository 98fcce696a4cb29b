package schemeapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"maitri/internal/domain"
)

type wireScheme struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Eligibility string   `json:"eligibility"`
	Documents   []string `json:"documents"`
	Steps       []string `json:"steps"`
	Benefits    string   `json:"benefits"`
}

type processAudioResponse struct {
	Text     string       `json:"text"`
	Response *string      `json:"response"`
	Schemes  []wireScheme `json:"schemes"`
	AudioURL string       `json:"audio_url"`
}

type schemesResponse struct {
	Schemes *[]wireScheme `json:"schemes"`
}

type schemeRequest struct {
	SchemeID string `json:"scheme_id"`
}

type schemeResponse struct {
	Scheme *wireScheme `json:"scheme"`
}

// ProcessAudio uploads a finished recording and decodes the service reply.
func (c *Client) ProcessAudio(ctx context.Context, recording domain.RecordingHandle) (domain.ServiceReply, error) {
	req, err := c.uploadRequest(ctx, "/process-audio", recording.StorageLocator)
	if err != nil {
		return domain.ServiceReply{}, err
	}

	var payload processAudioResponse
	if err := c.doJSON(ctx, req, &payload); err != nil {
		return domain.ServiceReply{}, err
	}
	if payload.Response == nil {
		return domain.ServiceReply{}, malformed("process-audio: missing response text")
	}
	schemes, err := toSchemes(payload.Schemes)
	if err != nil {
		return domain.ServiceReply{}, err
	}

	return domain.ServiceReply{
		UserText:     payload.Text,
		ResponseText: *payload.Response,
		Schemes:      schemes,
		AudioURL:     strings.TrimSpace(payload.AudioURL),
	}, nil
}

// ListSchemes returns every scheme the service knows about.
func (c *Client) ListSchemes(ctx context.Context) ([]domain.SchemeSummary, error) {
	var payload schemesResponse
	if err := c.getJSON(ctx, "/schemes", &payload); err != nil {
		return nil, err
	}
	if payload.Schemes == nil {
		return nil, malformed("schemes: missing schemes list")
	}
	return toSchemes(*payload.Schemes)
}

// GetScheme looks up one scheme by id.
func (c *Client) GetScheme(ctx context.Context, id string) (domain.SchemeSummary, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.SchemeSummary{}, errors.New("scheme id is required")
	}

	var payload schemeResponse
	err := c.postJSON(ctx, "/scheme", schemeRequest{SchemeID: id}, &payload)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return domain.SchemeSummary{}, errors.Join(err, ErrSchemeNotFound)
		}
		return domain.SchemeSummary{}, err
	}
	if payload.Scheme == nil {
		return domain.SchemeSummary{}, malformed("scheme: missing scheme object")
	}
	schemes, err := toSchemes([]wireScheme{*payload.Scheme})
	if err != nil {
		return domain.SchemeSummary{}, err
	}
	return schemes[0], nil
}

func toSchemes(wire []wireScheme) ([]domain.SchemeSummary, error) {
	if _, missing := lo.Find(wire, func(s wireScheme) bool { return strings.TrimSpace(s.ID) == "" }); missing {
		return nil, malformed("scheme without id")
	}
	if dups := lo.FindDuplicatesBy(wire, func(s wireScheme) string { return s.ID }); len(dups) > 0 {
		return nil, malformed("duplicate scheme id %q", dups[0].ID)
	}
	return lo.Map(wire, func(s wireScheme, _ int) domain.SchemeSummary {
		return domain.SchemeSummary{
			ID:                s.ID,
			Title:             s.Title,
			Description:       s.Description,
			EligibilityText:   s.Eligibility,
			RequiredDocuments: listOf(s.Documents),
			ApplicationSteps:  listOf(s.Steps),
			BenefitsText:      s.Benefits,
		}
	}), nil
}

// listOf keeps items exactly as sent, turning a missing list into an empty one.
func listOf(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
