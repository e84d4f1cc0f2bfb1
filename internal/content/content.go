// Package content holds the static copy rendered on the portfolio page.
package content

import (
	_ "embed"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultProfile []byte

// Profile is everything the page says about its owner.
type Profile struct {
	Name         string       `yaml:"name" validate:"required"`
	Initials     string       `yaml:"initials" validate:"required"`
	Title        string       `yaml:"title" validate:"required"`
	Tagline      string       `yaml:"tagline"`
	Photo        string       `yaml:"photo"`
	Resume       string       `yaml:"resume"`
	About        []string     `yaml:"about" validate:"min=1"`
	Stats        []Stat       `yaml:"stats" validate:"dive"`
	Education    []Education  `yaml:"education" validate:"dive"`
	Experience   []Experience `yaml:"experience" validate:"dive"`
	Skills       []Skill      `yaml:"skills" validate:"dive"`
	Technologies []string     `yaml:"technologies"`
	Services     []Service    `yaml:"services" validate:"dive"`
	Projects     []Project    `yaml:"projects" validate:"dive"`
	Contact      Contact      `yaml:"contact"`
	Footer       string       `yaml:"footer"`
}

// Stat is one tile of the hero stats grid.
type Stat struct {
	Value string `yaml:"value" validate:"required"`
	Label string `yaml:"label" validate:"required"`
}

// Education is one entry of the education timeline.
type Education struct {
	Title  string `yaml:"title" validate:"required"`
	Detail string `yaml:"detail"`
}

// Experience is one job on the experience timeline.
type Experience struct {
	Title       string `yaml:"title" validate:"required"`
	Company     string `yaml:"company" validate:"required"`
	Period      string `yaml:"period"`
	Description string `yaml:"description"`
}

// Skill is a named skill with a proficiency percentage.
type Skill struct {
	Name  string `yaml:"name" validate:"required"`
	Level int    `yaml:"level" validate:"gte=0,lte=100"`
}

// Service is a card in the services section.
type Service struct {
	Title       string `yaml:"title" validate:"required"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon" default:"external-link"`
}

// Project is a card in the portfolio section.
type Project struct {
	Title       string   `yaml:"title" validate:"required"`
	Description string   `yaml:"description"`
	Tech        []string `yaml:"tech"`
	Image       string   `yaml:"image"`
	CodeURL     string   `yaml:"code_url" validate:"omitempty,url"`
	DemoURL     string   `yaml:"demo_url" validate:"omitempty,url"`
}

// Contact lists the direct contact channels.
type Contact struct {
	Intro    string `yaml:"intro"`
	Email    string `yaml:"email" validate:"required,email"`
	Phone    string `yaml:"phone"`
	LinkedIn string `yaml:"linkedin"`
	GitHub   string `yaml:"github"`
}

// Default returns the built-in profile.
func Default() (*Profile, error) {
	return parse(defaultProfile)
}

// Load reads a profile from path. An empty path returns the built-in profile.
func Load(path string) (*Profile, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read content file")
	}
	return parse(data)
}

func parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "failed to parse content file")
	}
	if err := defaults.Set(&p); err != nil {
		return nil, errors.Wrap(err, "failed to set content defaults")
	}
	if err := validator.New().Struct(&p); err != nil {
		return nil, errors.Wrap(err, "content validation failed")
	}
	return &p, nil
}
