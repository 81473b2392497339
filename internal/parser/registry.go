package parser

import (
	"strings"

	"github.com/pdptw-visualizer/backend/internal/models"
)

// detectLines is how many non-blank lines a detector may look at.
const detectLines = 20

// Detector recognizes one file format from the head of its content.
type Detector interface {
	Kind() models.FileKind
	Matches(head []string) bool
}

// Registry holds all known detectors and picks the first that matches.
type Registry struct {
	detectors []Detector
}

// Global registry instance
var globalRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		detectors: []Detector{
			instanceDetector{},
			solutionDetector{},
		},
	}
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds a new detector to the registry.
func (r *Registry) Register(d Detector) {
	r.detectors = append(r.detectors, d)
}

// Detect classifies text. Unrecognized content is models.FileKindUnknown.
func (r *Registry) Detect(text string) models.FileKind {
	head := headLines(text, detectLines)
	for _, d := range r.detectors {
		if d.Matches(head) {
			return d.Kind()
		}
	}
	return models.FileKindUnknown
}

// DetectKind classifies text with the global registry.
func DetectKind(text string) models.FileKind {
	return globalRegistry.Detect(text)
}

func headLines(text string, n int) []string {
	head := make([]string, 0, n)
	for _, line := range splitLines(text) {
		if isBlank(line) {
			continue
		}
		head = append(head, line)
		if len(head) == n {
			break
		}
	}
	return head
}

type instanceDetector struct{}

func (instanceDetector) Kind() models.FileKind { return models.FileKindInstance }

// Matches wants a SIZE header and a NODES section header.
func (instanceDetector) Matches(head []string) bool {
	var size, nodes bool
	for _, line := range head {
		token, _ := tokenize(line)
		switch token {
		case tokSize:
			size = true
		case tokNodes:
			nodes = true
		}
	}
	return size && nodes
}

type solutionDetector struct{}

func (solutionDetector) Kind() models.FileKind { return models.FileKindSolution }

// Matches wants a Solution header or a route line.
func (solutionDetector) Matches(head []string) bool {
	for _, line := range head {
		token, _ := tokenize(line)
		if token == tokSolution || token == tokInstanceName {
			return true
		}
		if routeLineRegex.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}
