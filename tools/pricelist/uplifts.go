package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"broker-pricing/internal/pricing/application"
	pricing "broker-pricing/internal/pricing/domain"
)

// upliftFile is the YAML layout accepted by --uplifts:
//
//	uplifts:
//	  - {meter_type: NHH, component: day, term: 12, value: 0.5}
//	meters:
//	  "1200012345678":
//	    - {term: 24, component: standing_charge, value: 2}
type upliftFile struct {
	Uplifts []pricing.UpliftEntry                    `yaml:"uplifts"`
	Meters  map[string][]application.MeterUpliftEdit `yaml:"meters"`
}

func loadUpliftFile(path string) (upliftFile, error) {
	var out upliftFile
	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("uplift file: %w", err)
	}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("uplift file: decode yaml: %w", err)
	}
	return out, nil
}
