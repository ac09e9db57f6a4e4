package file

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/slok/imagegen/internal/model"
)

// EncodeSession returns the checkpoint document of a valid session.
func EncodeSession(s model.Session) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to encode invalid session: %w", err)
	}

	data, err := json.MarshalIndent(fromModel(s), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("could not marshal checkpoint: %w", err)
	}

	return append(data, '\n'), nil
}

// DecodeSession parses and validates a checkpoint document. Any failure is a
// model.ErrCorruptCheckpoint.
func DecodeSession(data []byte) (*model.Session, error) {
	var doc checkpoint
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("could not parse document: %w: %w", err, model.ErrCorruptCheckpoint)
	}

	s, err := doc.toModel()
	if err != nil {
		return nil, fmt.Errorf("invalid document: %w: %w", err, model.ErrCorruptCheckpoint)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid document: %w: %w", err, model.ErrCorruptCheckpoint)
	}

	return &s, nil
}

// checkpoint is the persisted checkpoint document.
type checkpoint struct {
	SessionID      string       `json:"sessionId"`
	Status         string       `json:"status"`
	OutputDir      string       `json:"outputDir,omitempty"`
	StartedAt      *time.Time   `json:"startedAt,omitempty"`
	CompletedAt    *time.Time   `json:"completedAt,omitempty"`
	Error          string       `json:"error,omitempty"`
	Cursor         int          `json:"cursor"`
	CompletedCount int          `json:"completedCount"`
	FailedCount    int          `json:"failedCount"`
	Items          []workItem   `json:"items"`
	Results        []itemResult `json:"results"`
}

type workItem struct {
	Position       string     `json:"position"`
	Prompt         string     `json:"prompt"`
	NegativePrompt string     `json:"negativePrompt"`
	Parameters     parameters `json:"parameters"`
}

type parameters struct {
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Steps         int     `json:"steps"`
	GuidanceScale float64 `json:"guidanceScale"`
}

type itemResult struct {
	Index                 int       `json:"index"`
	Position              string    `json:"position"`
	Status                string    `json:"status"`
	OutputPath            string    `json:"outputPath,omitempty"`
	Error                 string    `json:"error,omitempty"`
	GenerationTimeSeconds float64   `json:"generationTimeSeconds"`
	Timestamp             time.Time `json:"timestamp"`
}

func fromModel(s model.Session) checkpoint {
	c := checkpoint{
		SessionID:      s.ID,
		Status:         string(s.Status),
		OutputDir:      s.OutputDir,
		StartedAt:      utcPtr(s.StartedAt),
		CompletedAt:    utcPtr(s.CompletedAt),
		Error:          s.Error,
		Cursor:         s.Cursor,
		CompletedCount: s.CompletedCount,
		FailedCount:    s.FailedCount,
		Items:          make([]workItem, 0, len(s.Items)),
		Results:        make([]itemResult, 0, len(s.Results)),
	}

	for _, it := range s.Items {
		c.Items = append(c.Items, workItem{
			Position:       it.Position,
			Prompt:         it.Prompt,
			NegativePrompt: it.NegativePrompt,
			Parameters: parameters{
				Width:         it.Parameters.Width,
				Height:        it.Parameters.Height,
				Steps:         it.Parameters.Steps,
				GuidanceScale: it.Parameters.GuidanceScale,
			},
		})
	}

	for _, r := range s.Results {
		c.Results = append(c.Results, itemResult{
			Index:                 r.Index,
			Position:              r.Position,
			Status:                string(r.Status),
			OutputPath:            r.OutputPath,
			Error:                 r.Error,
			GenerationTimeSeconds: math.Round(r.Duration.Seconds()*1000) / 1000,
			Timestamp:             r.Timestamp.UTC(),
		})
	}

	return c
}

func (c checkpoint) toModel() (model.Session, error) {
	status := model.SessionStatus(c.Status)
	if !status.Valid() {
		return model.Session{}, fmt.Errorf("unknown status %q", c.Status)
	}

	s := model.Session{
		ID:             c.SessionID,
		Status:         status,
		OutputDir:      c.OutputDir,
		StartedAt:      utcPtr(c.StartedAt),
		CompletedAt:    utcPtr(c.CompletedAt),
		Error:          c.Error,
		Cursor:         c.Cursor,
		CompletedCount: c.CompletedCount,
		FailedCount:    c.FailedCount,
		Items:          make([]model.WorkItem, 0, len(c.Items)),
		Results:        make([]model.ItemResult, 0, len(c.Results)),
	}

	for _, it := range c.Items {
		s.Items = append(s.Items, model.WorkItem{
			Position:       it.Position,
			Prompt:         it.Prompt,
			NegativePrompt: it.NegativePrompt,
			Parameters: model.GenerationParameters{
				Width:         it.Parameters.Width,
				Height:        it.Parameters.Height,
				Steps:         it.Parameters.Steps,
				GuidanceScale: it.Parameters.GuidanceScale,
			},
		})
	}

	for _, r := range c.Results {
		if r.GenerationTimeSeconds < 0 {
			return model.Session{}, fmt.Errorf("result %d: negative generation time", r.Index)
		}
		s.Results = append(s.Results, model.ItemResult{
			Index:      r.Index,
			Position:   r.Position,
			Status:     model.ItemStatus(r.Status),
			OutputPath: r.OutputPath,
			Error:      r.Error,
			Duration:   time.Duration(r.GenerationTimeSeconds * float64(time.Second)),
			Timestamp:  r.Timestamp.UTC(),
		})
	}

	return s, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
