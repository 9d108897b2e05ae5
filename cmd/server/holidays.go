package main

import (
	"fmt"
	"os"

	"github.com/taskpass/server/internal/models"
	"gopkg.in/yaml.v3"
)

// loadHolidays reads the holiday calendar seed file.
func loadHolidays(path string) ([]models.Holiday, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holidays file: %w", err)
	}
	var doc struct {
		Holidays []models.Holiday `yaml:"holidays"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse holidays file: %w", err)
	}
	return doc.Holidays, nil
}
