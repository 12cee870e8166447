// Package catalog holds the static question catalog a survey runs through.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind identifies how a question is answered.
type Kind string

const (
	// SingleChoice questions accept exactly one option.
	SingleChoice Kind = "single_choice"
	// MultipleChoice questions accept an ordered set of options.
	MultipleChoice Kind = "multiple_choice"
	// FreeText questions accept arbitrary text.
	FreeText Kind = "free_text"
)

// DefaultOtherPrefix is prepended to free-text overrides of the Other option.
const DefaultOtherPrefix = "Other: "

// MaxIDLen bounds question ids so "<id>:<option>" fits in Telegram's
// 64-byte callback data next to the button key.
const MaxIDLen = 32

// idSep separates the question id from the option index in callback data.
const idSep = ":"

//go:embed default.yaml
var defaultCatalog []byte

// Option is a selectable answer of a choice question.
// Other marks the fallback option that asks for a free-text override
// instead of being stored verbatim.
type Option struct {
	Text  string `yaml:"text"`
	Other bool   `yaml:"other"`
}

// UnmarshalYAML accepts either a plain scalar or a {text, other} mapping.
func (o *Option) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		o.Text = value.Value
		o.Other = false
		return nil
	}
	type plain Option
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*o = Option(p)
	return nil
}

// Question is an immutable catalog entry.
type Question struct {
	ID      string   `yaml:"id"`
	Prompt  string   `yaml:"prompt"`
	Kind    Kind     `yaml:"kind"`
	Options []Option `yaml:"options"`
}

// Option returns the option at index i.
func (q Question) Option(i int) (Option, bool) {
	if i < 0 || i >= len(q.Options) {
		return Option{}, false
	}
	return q.Options[i], true
}

// IsChoice reports whether the question is answered with buttons.
func (q Question) IsChoice() bool {
	return q.Kind == SingleChoice || q.Kind == MultipleChoice
}

// Messages are the user-facing texts rendered by the transport.
type Messages struct {
	Welcome         string `yaml:"welcome"`
	StartButton     string `yaml:"start_button"`
	QuestionPrefix  string `yaml:"question_prefix"`
	FreeTextPrefix  string `yaml:"free_text_prefix"`
	FreeTextHint    string `yaml:"free_text_hint"`
	SkipButton      string `yaml:"skip_button"`
	OtherPrompt     string `yaml:"other_prompt"`
	BackButton      string `yaml:"back_button"`
	FinishButton    string `yaml:"finish_button"`
	Completed       string `yaml:"completed"`
	CompletedFailed string `yaml:"completed_failed"`
	UseButtons      string `yaml:"use_buttons"`
	NoSession       string `yaml:"no_session"`
	StatsTitle      string `yaml:"stats_title"`
	StatsEmpty      string `yaml:"stats_empty"`
	StatsTotal      string `yaml:"stats_total"`
	StatsActive     string `yaml:"stats_active"`
	StatsByDay      string `yaml:"stats_by_day"`
	StatsRecent     string `yaml:"stats_recent"`
	Anonymous       string `yaml:"anonymous"`
	Unsupported     string `yaml:"unsupported"`
}

// Catalog is the ordered list of main (choice) questions followed by
// additional (free-text) questions.
type Catalog struct {
	Main        []Question `yaml:"main"`
	Additional  []Question `yaml:"additional"`
	OtherPrefix string     `yaml:"other_prefix"`
	Messages    Messages   `yaml:"messages"`

	byID map[string]Question
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file. An empty path yields Default().
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return &c, nil
}

// New builds a catalog from questions already in memory.
func New(main, additional []Question) (*Catalog, error) {
	c := &Catalog{Main: main, Additional: additional}
	if err := c.init(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) init() error {
	if c.OtherPrefix == "" {
		c.OtherPrefix = DefaultOtherPrefix
	}
	c.Messages.applyDefaults()
	if err := c.Validate(); err != nil {
		return err
	}
	c.byID = make(map[string]Question, len(c.Main)+len(c.Additional))
	for _, q := range c.All() {
		c.byID[q.ID] = q
	}
	return nil
}

// Validate checks the catalog invariants: unique short ids without ":",
// known kinds, non-empty option lists for choice kinds, at most one Other
// option, and no regular option that looks like an Other override.
func (c *Catalog) Validate() error {
	if len(c.Main)+len(c.Additional) == 0 {
		return errors.New("catalog: no questions")
	}
	seen := make(map[string]struct{}, len(c.Main)+len(c.Additional))
	for _, q := range c.All() {
		id := strings.TrimSpace(q.ID)
		if id == "" {
			return fmt.Errorf("catalog: question %q has empty id", q.Prompt)
		}
		if len(id) > MaxIDLen {
			return fmt.Errorf("catalog: question id %q is longer than %d bytes", id, MaxIDLen)
		}
		if strings.Contains(id, idSep) {
			return fmt.Errorf("catalog: question id %q must not contain %q", id, idSep)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("catalog: duplicate question id %q", id)
		}
		seen[id] = struct{}{}

		switch q.Kind {
		case SingleChoice, MultipleChoice:
			if len(q.Options) == 0 {
				return fmt.Errorf("catalog: question %q has no options", id)
			}
			others := 0
			for _, o := range q.Options {
				if strings.TrimSpace(o.Text) == "" {
					return fmt.Errorf("catalog: question %q has an empty option", id)
				}
				if o.Other {
					others++
				} else if strings.HasPrefix(o.Text, c.OtherPrefix) {
					return fmt.Errorf("catalog: question %q option %q starts with the other prefix %q", id, o.Text, c.OtherPrefix)
				}
			}
			if others > 1 {
				return fmt.Errorf("catalog: question %q has %d other options; at most one allowed", id, others)
			}
		case FreeText:
			if len(q.Options) > 0 {
				return fmt.Errorf("catalog: free text question %q must not have options", id)
			}
		default:
			return fmt.Errorf("catalog: question %q has invalid kind %q", id, q.Kind)
		}
	}
	return nil
}

// All returns main questions followed by additional ones.
func (c *Catalog) All() []Question {
	out := make([]Question, 0, len(c.Main)+len(c.Additional))
	out = append(out, c.Main...)
	return append(out, c.Additional...)
}

// Question looks up a question by id.
func (c *Catalog) Question(id string) (Question, bool) {
	q, ok := c.byID[id]
	return q, ok
}

func (m *Messages) applyDefaults() {
	def := func(field *string, value string) {
		if strings.TrimSpace(*field) == "" {
			*field = value
		}
	}
	def(&m.Welcome, "Hi, {name}! Ready to start the survey?")
	def(&m.StartButton, "🚀 Start survey")
	def(&m.QuestionPrefix, "❓ ")
	def(&m.FreeTextPrefix, "📝 ")
	def(&m.FreeTextHint, "Type your answer:")
	def(&m.SkipButton, "⏭ Skip")
	def(&m.OtherPrompt, "📝 Please type your own answer:")
	def(&m.BackButton, "↩ Back to options")
	def(&m.FinishButton, "✅ Finish selection")
	def(&m.Completed, "🎉 Thank you! Your answers have been saved.")
	def(&m.CompletedFailed, "❌ Your answers could not be saved. Please try again later with /start.")
	def(&m.UseButtons, "Please use the buttons to answer.")
	def(&m.NoSession, "Use /start to begin the survey.")
	def(&m.StatsTitle, "📊 Survey statistics")
	def(&m.StatsEmpty, "📊 No data")
	def(&m.StatsTotal, "Total responses")
	def(&m.StatsActive, "Active sessions")
	def(&m.StatsByDay, "By day")
	def(&m.StatsRecent, "Latest responses")
	def(&m.Anonymous, "Anonymous")
	def(&m.Unsupported, "Unsupported action")
}

// WelcomeFor renders the welcome text for a display name.
func (m Messages) WelcomeFor(name string) string {
	return strings.ReplaceAll(m.Welcome, "{name}", name)
}
