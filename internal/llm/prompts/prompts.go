package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/literable/internal/model"
)

//go:embed rubrics/*.txt
var rubricFS embed.FS

// ErrRubricUnavailable is returned when the rubric selected for a question cannot be loaded.
var ErrRubricUnavailable = errors.New("rubric unavailable")

// DefaultMaxFieldChars caps each text embedded in the user prompt.
const DefaultMaxFieldChars = 4000

const truncationMarker = "\n[truncated]"

// DefaultRubric is the rubric used when a question has no category or an unknown one.
const DefaultRubric = "default"

var rubricNames = map[model.Category]string{
	model.CategoryFactual:     "factual",
	model.CategoryInferential: "inferential",
	model.CategoryCritical:    "critical",
	model.CategoryCreative:    "creative",
}

// RubricName returns the rubric file name (without extension) for a category.
func RubricName(c model.Category) string {
	if name, ok := rubricNames[c]; ok {
		return name
	}
	return DefaultRubric
}

// Embedded returns the built-in rubrics, one <name>.txt file per rubric.
func Embedded() fs.FS {
	sub, err := fs.Sub(rubricFS, "rubrics")
	if err != nil {
		panic(err)
	}
	return sub
}

// Catalog loads rubric texts from a filesystem and caches them.
type Catalog struct {
	fsys fs.FS

	mu    sync.Mutex
	cache map[string]string
}

// NewCatalog creates a catalog reading <name>.txt files from fsys.
func NewCatalog(fsys fs.FS) *Catalog {
	return &Catalog{fsys: fsys, cache: make(map[string]string)}
}

// Rubric returns the rubric text for a category. Unknown or empty categories
// use the default rubric. A rubric that cannot be read is an error; no other
// rubric is substituted for it.
func (c *Catalog) Rubric(cat model.Category) (string, error) {
	name := RubricName(cat)

	c.mu.Lock()
	defer c.mu.Unlock()
	if text, ok := c.cache[name]; ok {
		return text, nil
	}

	file := name + ".txt"
	data, err := fs.ReadFile(c.fsys, file)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrRubricUnavailable, file, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrRubricUnavailable, file)
	}
	c.cache[name] = text
	return text, nil
}

// Input is what a prompt is built from.
type Input struct {
	Question    string
	ModelAnswer string
	Answer      string
	Category    model.Category
}

// Prompt is the pair of messages sent to the model.
type Prompt struct {
	System string
	User   string
	Rubric string
}

var userTemplate = template.Must(template.New("user").Parse(
	`문제: {{.Question}}
모범답안: {{.ModelAnswer}}
학생답안: {{.Answer}}
`))

// Builder assembles system and user prompts.
type Builder struct {
	catalog       *Catalog
	maxFieldChars int
}

// NewBuilder creates a Builder. A non-positive maxFieldChars uses DefaultMaxFieldChars.
func NewBuilder(catalog *Catalog, maxFieldChars int) *Builder {
	if maxFieldChars <= 0 {
		maxFieldChars = DefaultMaxFieldChars
	}
	return &Builder{catalog: catalog, maxFieldChars: maxFieldChars}
}

// Build returns the prompt for one answer.
func (b *Builder) Build(in Input) (Prompt, error) {
	system, err := b.catalog.Rubric(in.Category)
	if err != nil {
		return Prompt{}, err
	}

	data := Input{
		Question:    truncate(in.Question, b.maxFieldChars),
		ModelAnswer: truncate(in.ModelAnswer, b.maxFieldChars),
		Answer:      truncate(in.Answer, b.maxFieldChars),
	}
	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, data); err != nil {
		return Prompt{}, fmt.Errorf("render user prompt: %w", err)
	}

	return Prompt{System: system, User: buf.String(), Rubric: RubricName(in.Category)}, nil
}

// truncate cuts s to at most max runes, marking the cut.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + truncationMarker
}
