package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
	"github.com/relaydesk/relay/internal/conf"
	"github.com/relaydesk/relay/internal/infra/llm"
)

// completer is the chat call used by the LLM-backed repositories
type completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// number accepts JSON numbers and numeric strings
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*n = number(v)
	return nil
}

func (n number) Int() int {
	return int(float64(n) + 0.5)
}

// entitiesFrom converts loosely typed entity values into string slots
func entitiesFrom(raw map[string]interface{}) domain.Entities {
	get := func(key string) *string {
		v, ok := raw[key]
		if !ok || v == nil {
			return nil
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(t)
		default:
			b, err := json.Marshal(t)
			if err != nil {
				return nil
			}
			s = string(b)
		}
		return &s
	}
	return domain.Entities{
		CustomerName:    get("customer_name"),
		ProjectName:     get("project_name"),
		Date:            get("date"),
		Cost:            get("cost"),
		Material:        get("material"),
		ProblemType:     get("problem_type"),
		Location:        get("location"),
		Measurement:     get("measurement"),
		MentionedPerson: get("mentioned_person"),
	}
}

// optional reads a nullable string field, treating "null" and "none" as absent
func optional(p *string) string {
	v := domain.Value(p)
	if strings.EqualFold(v, "null") || strings.EqualFold(v, "none") {
		return ""
	}
	return v
}

func decodeJSON(raw string, v interface{}) error {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), v); err != nil {
		return fmt.Errorf("malformed model output: %w", err)
	}
	return nil
}

// ========== Classifier ==========

type classifierRepo struct {
	llm     completer
	prompts *conf.PromptsConfig
}

// NewClassifierRepo creates an LLM-backed classifier
func NewClassifierRepo(client completer, prompts *conf.PromptsConfig) repo.ClassifierRepo {
	if prompts == nil {
		prompts = conf.DefaultPromptsConfig()
	}
	return &classifierRepo{llm: client, prompts: prompts}
}

type classificationWire struct {
	MessageType      string                 `json:"message_type"`
	Urgency          string                 `json:"urgency"`
	Confidence       *number                `json:"confidence"`
	Entities         map[string]interface{} `json:"entities"`
	Intent           string                 `json:"intent"`
	SuggestedAction  string                 `json:"suggested_action"`
	RequiresContext  bool                   `json:"requires_context"`
	NeedsLookup      bool                   `json:"needs_database_lookup"`
	ShouldRespond    *bool                  `json:"should_respond"`
	ResponseReason   string                 `json:"response_reason"`
	IntendedAudience string                 `json:"intended_audience"`
	BotMentioned     bool                   `json:"bot_mentioned"`
	Topic            string                 `json:"topic"`
	Reasoning        string                 `json:"reasoning"`
}

func (r *classifierRepo) ClassifyDirect(ctx context.Context, req repo.ClassifyRequest) (*domain.Classification, error) {
	return r.classify(ctx, req, false)
}

func (r *classifierRepo) ClassifyGroup(ctx context.Context, req repo.ClassifyRequest) (*domain.Classification, error) {
	return r.classify(ctx, req, true)
}

func (r *classifierRepo) classify(ctx context.Context, req repo.ClassifyRequest, group bool) (*domain.Classification, error) {
	out, err := r.llm.Complete(ctx, llm.Request{
		System:      r.prompts.ClassifierSystemPrompt(group),
		User:        classifyUserPrompt(req, group),
		Temperature: 0.3,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to classify: %w", err)
	}

	var w classificationWire
	if err := decodeJSON(out, &w); err != nil {
		return nil, err
	}
	if w.Confidence == nil {
		return nil, fmt.Errorf("missing confidence")
	}
	if group && w.ShouldRespond == nil {
		return nil, fmt.Errorf("missing should_respond")
	}

	c := &domain.Classification{
		MessageType:      domain.MessageType(strings.TrimSpace(w.MessageType)),
		Urgency:          domain.Urgency(strings.ToLower(strings.TrimSpace(w.Urgency))),
		Confidence:       w.Confidence.Int(),
		Entities:         entitiesFrom(w.Entities),
		Intent:           w.Intent,
		SuggestedAction:  w.SuggestedAction,
		RequiresContext:  w.RequiresContext || w.NeedsLookup,
		Group:            group,
		ResponseReason:   w.ResponseReason,
		IntendedAudience: w.IntendedAudience,
		BotMentioned:     w.BotMentioned,
		Topic:            w.Topic,
		Reasoning:        w.Reasoning,
	}
	if group {
		c.ShouldRespond = *w.ShouldRespond
	} else {
		c.ShouldRespond = true
	}
	return c, nil
}

func classifyUserPrompt(req repo.ClassifyRequest, group bool) string {
	var sb strings.Builder
	msg := req.Message
	if group {
		topic := msg.TopicName
		if topic == "" {
			topic = "Main chat"
		}
		fmt.Fprintf(&sb, "GROUP: %s\nTOPIC: %s\n", msg.ChatTitle, topic)
		if req.BotName != "" {
			fmt.Fprintf(&sb, "ASSISTANT NAME: %s\n", req.BotName)
		}
		sb.WriteString("\nRECENT GROUP CONVERSATION:\n")
		sb.WriteString(domain.FormatForPrompt(req.History))
		sb.WriteString("\n\n")
	}
	role := string(msg.SenderRole)
	if role == "" {
		role = string(domain.RoleWorker)
	}
	fmt.Fprintf(&sb, "SENDER: %s (%s)\n", msg.SenderName, role)
	if msg.AddressesOperator {
		sb.WriteString("The message mentions the assistant directly.\n")
	}
	fmt.Fprintf(&sb, "\nCURRENT MESSAGE:\n%q\n", req.Text)
	return sb.String()
}

// ========== Reply generator ==========

type replyRepo struct {
	llm     completer
	prompts *conf.PromptsConfig
}

// NewReplyRepo creates an LLM-backed reply generator
func NewReplyRepo(client completer, prompts *conf.PromptsConfig) repo.ReplyRepo {
	if prompts == nil {
		prompts = conf.DefaultPromptsConfig()
	}
	return &replyRepo{llm: client, prompts: prompts}
}

type replyWire struct {
	Reply             string  `json:"reply"`
	Confidence        *number `json:"confidence"`
	Action            string  `json:"action"`
	EscalateTo        *string `json:"escalate_to"`
	Reasoning         string  `json:"reasoning"`
	MissingInfo       *string `json:"missing_info"`
	SuggestedFollowup *string `json:"suggested_followup"`
}

func (r *replyRepo) Draft(ctx context.Context, req repo.ReplyRequest) (*domain.ReplyDraft, error) {
	c := req.Classification
	out, err := r.llm.Complete(ctx, llm.Request{
		System:      r.prompts.ReplySystemPrompt(string(c.MessageType), string(c.Urgency)),
		User:        replyUserPrompt(req),
		Temperature: 0.5,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to draft reply: %w", err)
	}

	var w replyWire
	if err := decodeJSON(out, &w); err != nil {
		return nil, err
	}
	if w.Confidence == nil {
		return nil, fmt.Errorf("missing confidence")
	}
	return &domain.ReplyDraft{
		Text:              strings.TrimSpace(w.Reply),
		Confidence:        domain.ClampConfidence(w.Confidence.Int()),
		SuggestedAction:   domain.Action(w.Action),
		EscalateTo:        optional(w.EscalateTo),
		Reasoning:         w.Reasoning,
		MissingInfo:       optional(w.MissingInfo),
		SuggestedFollowup: optional(w.SuggestedFollowup),
		Language:          req.TargetLanguage.Code,
	}, nil
}

func replyUserPrompt(req repo.ReplyRequest) string {
	var sb strings.Builder
	c := req.Classification
	msg := req.Message

	fmt.Fprintf(&sb, "ORIGINAL MESSAGE:\n%q\n\n", msg.Text)
	fmt.Fprintf(&sb, "SENDER: %s (%s)\n\n", msg.SenderName, msg.SenderRole)
	fmt.Fprintf(&sb, "MESSAGE ANALYSIS:\n- Type: %s\n- Urgency: %s\n- Intent: %s\n- Suggested action: %s\n\n",
		c.MessageType, c.Urgency, c.Intent, c.SuggestedAction)

	entities, _ := json.MarshalIndent(c.Entities, "", "  ")
	fmt.Fprintf(&sb, "EXTRACTED ENTITIES:\n%s\n\n", entities)

	sb.WriteString("AVAILABLE DATA:\n")
	if req.Context.IsEmpty() {
		sb.WriteString("No specific project data available.\n")
	} else {
		data, _ := json.MarshalIndent(req.Context, "", "  ")
		sb.Write(data)
		sb.WriteString("\n")
	}

	if len(req.Corrections) > 0 {
		sb.WriteString("\nLEARNING FROM PAST CORRECTIONS:\n")
		for _, corr := range req.Corrections {
			fmt.Fprintf(&sb, "- Original message: %s\n- AI suggested: %s\n- You edited to: %s\n",
				corr.IncomingMessage, corr.AISuggestion, corr.FinalEdit)
		}
	}

	lang := req.TargetLanguage.Name
	if lang == "" {
		lang = domain.English.Name
	}
	fmt.Fprintf(&sb, "\nWrite the reply in %s.\n", lang)
	return sb.String()
}

// ========== Translator ==========

type translatorRepo struct {
	llm     completer
	prompts *conf.PromptsConfig
}

// NewTranslatorRepo creates an LLM-backed detector and translator
func NewTranslatorRepo(client completer, prompts *conf.PromptsConfig) repo.TranslatorRepo {
	if prompts == nil {
		prompts = conf.DefaultPromptsConfig()
	}
	return &translatorRepo{llm: client, prompts: prompts}
}

type detectionWire struct {
	Code       string  `json:"language_code"`
	Name       string  `json:"language_name"`
	Confidence *number `json:"confidence"`
}

func (r *translatorRepo) Detect(ctx context.Context, text string) (*domain.Detection, error) {
	out, err := r.llm.Complete(ctx, llm.Request{
		System:      r.prompts.Translator.Detect,
		User:        fmt.Sprintf("TEXT: %q", text),
		Temperature: 0.1,
		JSON:        true,
		Fast:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect language: %w", err)
	}

	var w detectionWire
	if err := decodeJSON(out, &w); err != nil {
		return nil, err
	}
	lang, ok := domain.LookupLanguage(w.Code)
	if !ok {
		// Unlisted languages are kept with the name the model reported
		code := strings.ToLower(strings.TrimSpace(w.Code))
		if code == "" {
			return nil, fmt.Errorf("missing language_code")
		}
		lang = domain.Language{Code: code, Name: w.Name}
	}
	confidence := 80
	if w.Confidence != nil {
		confidence = domain.ClampConfidence(w.Confidence.Int())
	}
	return &domain.Detection{Language: lang, Confidence: confidence}, nil
}

func (r *translatorRepo) Translate(ctx context.Context, text string, source, target domain.Language, hint string) (string, error) {
	var sb strings.Builder
	if source.Name != "" {
		fmt.Fprintf(&sb, "Source language: %s\n", source.Name)
	}
	if hint != "" {
		fmt.Fprintf(&sb, "CONTEXT: %s\n", hint)
	}
	fmt.Fprintf(&sb, "\nTEXT TO TRANSLATE:\n%q\n", text)

	out, err := r.llm.Complete(ctx, llm.Request{
		System:      r.prompts.TranslateSystemPrompt(target.Name),
		User:        sb.String(),
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("failed to translate: %w", err)
	}
	if out == "" {
		return "", fmt.Errorf("empty translation")
	}
	return out, nil
}
