package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"appeloffres/api/internal/models"
)

const DefaultGeminiModel = "gemini-2.5-flash"

const (
	// Other sections are quoted up to this many bytes each in the prompt.
	maxContextSectionLength = 1500
	maxRCExcerptLength      = 3000
)

var (
	ErrSectionNotFound = errors.New("section not found")
	ErrEmptyDraft      = errors.New("generated draft is empty")
	ErrNoCandidate     = errors.New("model returned no candidate")
)

// TextGenerator produces a completion for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator calls the Gemini API and asks for JSON output.
type GeminiGenerator struct {
	cli   *genai.Client
	model string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiGenerator{cli: cli, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrNoCandidate
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// RateLimiter is a token bucket shared by every drafting request.
type RateLimiter struct {
	tokens     float64
	capacity   float64
	refillRate float64
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter allows ratePerSecond calls per second with bursts of up to capacity.
func NewRateLimiter(capacity, ratePerSecond float64) *RateLimiter {
	if capacity < 1 {
		capacity = 1
	}
	return &RateLimiter{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: ratePerSecond,
		lastRefill: time.Now(),
	}
}

func (rl *RateLimiter) Take() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens = min(rl.capacity, rl.tokens+elapsed*rl.refillRate)
	rl.lastRefill = now

	if rl.tokens >= 1.0 {
		rl.tokens -= 1.0
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for !rl.Take() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Drafter writes section content with a text generator.
type Drafter struct {
	gen     TextGenerator
	limiter *RateLimiter
}

func NewDrafter(gen TextGenerator, limiter *RateLimiter) *Drafter {
	return &Drafter{gen: gen, limiter: limiter}
}

// DraftSection generates content for one section of p and returns the section with its new HTML
// content. The project itself is not modified.
func (d *Drafter) DraftSection(ctx context.Context, p models.DemandProject, sectionID, instructions string, rc *models.RCSummary) (models.Section, error) {
	var target *models.Section
	for i := range p.Sections {
		if p.Sections[i].ID == sectionID {
			target = &p.Sections[i]
			break
		}
	}
	if target == nil {
		return models.Section{}, ErrSectionNotFound
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return models.Section{}, err
	}

	raw, err := d.gen.Generate(ctx, buildDraftPrompt(p, *target, instructions, rc))
	if err != nil {
		return models.Section{}, fmt.Errorf("failed to generate section draft: %w", err)
	}

	markdown := parseDraftContent(raw)
	if strings.TrimSpace(markdown) == "" {
		return models.Section{}, ErrEmptyDraft
	}

	section := *target
	section.Content = MarkdownToHTML(markdown)
	return section, nil
}

// parseDraftContent reads {"content": "..."} from the model output. Malformed JSON falls back to
// the lenient extractor; output that is not JSON at all is taken as the content itself.
func parseDraftContent(raw string) string {
	var payload struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err == nil {
		return strings.TrimSpace(UnwrapJSONField(payload.Content, "content"))
	}
	if v, ok := ExtractJSONStringField(raw, "content"); ok {
		return strings.TrimSpace(v)
	}
	if strings.HasPrefix(strings.TrimSpace(raw), "{") {
		return ""
	}
	return strings.TrimSpace(UnwrapJSONField(raw, "content"))
}

func buildDraftPrompt(p models.DemandProject, target models.Section, instructions string, rc *models.RCSummary) string {
	var b strings.Builder

	b.WriteString("Tu es un acheteur public français qui rédige une demande d'achat destinée au service des marchés.\n")
	fmt.Fprintf(&b, "Rédige le contenu de la section \"%s\".\n", strings.TrimSpace(target.Title))
	b.WriteString("Style : professionnel, factuel, phrases courtes. N'invente ni montant ni date absents du contexte.\n")
	b.WriteString("Mise en forme autorisée : paragraphes, listes \"- \" ou \"1. \", **gras**, *italique*. Pas de titre.\n")
	b.WriteString("Réponds uniquement avec un objet JSON de la forme {\"content\": \"<texte markdown>\"}.\n\n")

	b.WriteString("[DEMANDE]\n")
	fields := []struct {
		label string
		value *string
	}{
		{"Titre", p.Title},
		{"Référence", p.Reference},
		{"Service demandeur", p.DepartmentName},
		{"Type de besoin", p.NeedType},
		{"Urgence", urgencyLabel(p.UrgencyLevel)},
		{"Budget", p.BudgetRange},
		{"Livraison souhaitée", p.DesiredDeliveryDate},
		{"Description", p.Description},
	}
	for _, f := range fields {
		if v := PlainText(models.Value(f.value)); v != "" {
			fmt.Fprintf(&b, "%s : %s\n", f.label, v)
		}
	}

	var others []string
	for _, s := range sortedSections(p.Sections) {
		if s.ID == target.ID {
			continue
		}
		if text := PlainText(s.Content); text != "" {
			others = append(others, fmt.Sprintf("## %s\n%s", strings.TrimSpace(s.Title), truncateRunes(text, maxContextSectionLength)))
		}
	}
	if len(others) > 0 {
		b.WriteString("\n[AUTRES SECTIONS]\n")
		b.WriteString(strings.Join(others, "\n\n"))
		b.WriteString("\n")
	}

	if existing := PlainText(target.Content); existing != "" {
		b.WriteString("\n[CONTENU ACTUEL DE LA SECTION]\n")
		b.WriteString(truncateRunes(existing, maxContextSectionLength))
		b.WriteString("\n")
	}

	if rc != nil {
		writeRCContext(&b, *rc)
	}

	if instructions = strings.TrimSpace(instructions); instructions != "" {
		b.WriteString("\n[CONSIGNES]\n")
		b.WriteString(instructions)
		b.WriteString("\n")
	}
	return b.String()
}

func writeRCContext(b *strings.Builder, rc models.RCSummary) {
	b.WriteString("\n[RÈGLEMENT DE CONSULTATION]\n")
	if v := models.Value(rc.Buyer); v != "" {
		fmt.Fprintf(b, "Acheteur : %s\n", v)
	}
	if v := models.Value(rc.ProcedureType); v != "" {
		fmt.Fprintf(b, "Procédure : %s\n", v)
	}
	if v := models.Value(rc.SubmissionDeadline); v != "" {
		fmt.Fprintf(b, "Date limite : %s\n", v)
	}
	for _, lot := range rc.Lots {
		fmt.Fprintf(b, "Lot %d : %s\n", lot.Number, lot.Title)
	}
	for _, c := range rc.AwardCriteria {
		if c.Weight != nil {
			fmt.Fprintf(b, "Critère : %s (%d %%)\n", c.Name, *c.Weight)
		} else {
			fmt.Fprintf(b, "Critère : %s\n", c.Name)
		}
	}
	for _, fact := range rc.KeyFacts {
		fmt.Fprintf(b, "- %s\n", fact)
	}
	if rc.Excerpt != "" {
		b.WriteString("Extrait :\n")
		b.WriteString(truncateRunes(rc.Excerpt, maxRCExcerptLength))
		b.WriteString("\n")
	}
}
