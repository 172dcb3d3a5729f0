package model

import (
	"errors"
	"strings"
	"time"
)

type Project struct {
	ID        string
	Name      string
	Color     string
	CreatedAt time.Time
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("model: project id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("model: project name is required")
	}
	if p.CreatedAt.IsZero() {
		return errors.New("model: project created_at is required")
	}
	return nil
}
