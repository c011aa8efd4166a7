package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PromptsConfig contains all prompts loaded from YAML
type PromptsConfig struct {
	Business   BusinessInfo      `yaml:"business"`
	Classifier ClassifierPrompts `yaml:"classifier"`
	Reply      ReplyPrompts      `yaml:"reply"`
	Translator TranslatorPrompts `yaml:"translator"`
}

// BusinessInfo describes the business the assistant speaks for
type BusinessInfo struct {
	Name           string `yaml:"name"`
	Type           string `yaml:"type"`
	Location       string `yaml:"location"`
	Specialization string `yaml:"specialization"`
	// Authority lists who decides what, rendered into the reply prompt
	Authority string `yaml:"authority"`
}

// ClassifierPrompts contains classifier system prompts
type ClassifierPrompts struct {
	Direct string `yaml:"direct"`
	Group  string `yaml:"group"`
}

// ReplyPrompts contains reply generator prompts
type ReplyPrompts struct {
	System string `yaml:"system"`
	// Guidance is appended to the system prompt per message type
	Guidance map[string]string `yaml:"guidance"`
	Urgent   string            `yaml:"urgent"`
}

// TranslatorPrompts contains detection and translation prompts
type TranslatorPrompts struct {
	Detect    string `yaml:"detect"`
	Translate string `yaml:"translate"`
}

// LoadPromptsConfig loads prompts from YAML. It returns the path that was
// loaded, or "" when built-in defaults are used.
func LoadPromptsConfig(configPath string) (*PromptsConfig, string, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/prompts.yaml",
			"/etc/relay/prompts.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "prompts.yaml"))
		}
	}

	var (
		data       []byte
		loadedPath string
	)
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err == nil {
			data = raw
			loadedPath = p
			break
		}
	}
	if data == nil {
		if configPath != "" {
			return nil, "", fmt.Errorf("failed to read prompts file %s", configPath)
		}
		return DefaultPromptsConfig(), "", nil
	}

	var config PromptsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, "", fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}
	config.fillDefaults()
	return &config, loadedPath, nil
}

// fillDefaults fills in default values for empty fields
func (c *PromptsConfig) fillDefaults() {
	defaults := DefaultPromptsConfig()

	if c.Business.Name == "" {
		c.Business.Name = defaults.Business.Name
	}
	if c.Business.Type == "" {
		c.Business.Type = defaults.Business.Type
	}
	if c.Business.Location == "" {
		c.Business.Location = defaults.Business.Location
	}
	if c.Business.Specialization == "" {
		c.Business.Specialization = defaults.Business.Specialization
	}
	if c.Business.Authority == "" {
		c.Business.Authority = defaults.Business.Authority
	}

	if c.Classifier.Direct == "" {
		c.Classifier.Direct = defaults.Classifier.Direct
	}
	if c.Classifier.Group == "" {
		c.Classifier.Group = defaults.Classifier.Group
	}

	if c.Reply.System == "" {
		c.Reply.System = defaults.Reply.System
	}
	if c.Reply.Urgent == "" {
		c.Reply.Urgent = defaults.Reply.Urgent
	}
	if c.Reply.Guidance == nil {
		c.Reply.Guidance = defaults.Reply.Guidance
	}

	if c.Translator.Detect == "" {
		c.Translator.Detect = defaults.Translator.Detect
	}
	if c.Translator.Translate == "" {
		c.Translator.Translate = defaults.Translator.Translate
	}
}

// ReplySystemPrompt renders the reply system prompt for a message type and urgency
func (c *PromptsConfig) ReplySystemPrompt(messageType, urgency string) string {
	prompt := c.Reply.System
	prompt = strings.ReplaceAll(prompt, "{{business_name}}", c.Business.Name)
	prompt = strings.ReplaceAll(prompt, "{{business_type}}", c.Business.Type)
	prompt = strings.ReplaceAll(prompt, "{{location}}", c.Business.Location)
	prompt = strings.ReplaceAll(prompt, "{{specialization}}", c.Business.Specialization)
	prompt = strings.ReplaceAll(prompt, "{{authority}}", c.Business.Authority)

	if g, ok := c.Reply.Guidance[messageType]; ok && g != "" {
		prompt += "\n\n" + strings.TrimSpace(g)
	}
	if urgency == "high" || urgency == "critical" {
		prompt += "\n\n" + strings.TrimSpace(c.Reply.Urgent)
	}
	return strings.TrimSpace(prompt)
}

// TranslateSystemPrompt renders the translator prompt for a target language
func (c *PromptsConfig) TranslateSystemPrompt(targetName string) string {
	return strings.TrimSpace(strings.ReplaceAll(c.Translator.Translate, "{{target_language}}", targetName))
}

// ClassifierSystemPrompt renders the classifier prompt
func (c *PromptsConfig) ClassifierSystemPrompt(group bool) string {
	prompt := c.Classifier.Direct
	if group {
		prompt = c.Classifier.Group
	}
	prompt = strings.ReplaceAll(prompt, "{{business_type}}", c.Business.Type)
	return strings.TrimSpace(prompt)
}

// DefaultPromptsConfig returns the built-in prompts
func DefaultPromptsConfig() *PromptsConfig {
	return &PromptsConfig{
		Business: BusinessInfo{
			Name:           "Relay Renovations",
			Type:           "construction and renovation",
			Location:       "Berlin, Germany",
			Specialization: "Bathrooms, kitchens, glass installations",
			Authority: `- Workers: field decisions, material usage
- Coordinator: scheduling, basic customer communication
- Manager: project decisions, customer issues
- Owner: final decisions, financial approval (EUR 1000+)`,
		},
		Classifier: ClassifierPrompts{
			Direct: `You analyze direct messages sent to a {{business_type}} business.

MESSAGE TYPES:
- factual_question: asking about specs, materials, status, or project details
- scheduling: about dates, appointments, availability, timeline
- status_update: informing about completion, changes, or current state
- technical_problem: reporting an issue that needs a solution
- customer_complaint: customer dissatisfaction or quality concerns
- decision_required: needs management approval or authorization
- task_assignment: delegating or requesting work
- acknowledgment: simple confirmation or "okay" type messages
- general_chat: small talk or non-work related

URGENCY: low (can wait days), medium (24-48 hours), high (same day), critical (emergency, blocking work).

Return ONLY valid JSON:
{
  "message_type": "one of the types above",
  "urgency": "low|medium|high|critical",
  "confidence": 0-100,
  "entities": {
    "customer_name": null, "project_name": null, "date": null, "cost": null, "material": null,
    "problem_type": null, "location": null, "measurement": null, "mentioned_person": null
  },
  "intent": "what the sender wants",
  "suggested_action": "what should be done next",
  "requires_context": true,
  "reasoning": "brief explanation"
}
Use null for entities that are not mentioned.`,
			Group: `You analyze a message from a GROUP CHAT of a {{business_type}} business and decide whether
the assistant should respond. Consider whether it is directed at the assistant or the owner, whether it is a
general question, or a private conversation between others.

MESSAGE TYPES:
- factual_question, scheduling, status_update, technical_problem, customer_complaint,
  decision_required, task_assignment, acknowledgment, general_chat
- question_to_specific_person: directed question to someone specific
- group_discussion: multi-person discussion or debate
- follow_up: following up on a previous message or topic

URGENCY: low, medium, high, critical.

Return ONLY valid JSON:
{
  "should_respond": true,
  "response_reason": "why the assistant should or should not respond",
  "message_type": "one of the types above",
  "urgency": "low|medium|high|critical",
  "confidence": 0-100,
  "topic": "what is being discussed",
  "intended_audience": "everyone|specific_person|bot|group_discussion",
  "bot_mentioned": false,
  "entities": {
    "customer_name": null, "project_name": null, "date": null, "cost": null, "material": null,
    "problem_type": null, "location": null, "measurement": null, "mentioned_person": null
  },
  "intent": "what the sender wants",
  "suggested_action": "what should be done next",
  "requires_context": true,
  "reasoning": "brief explanation of classification and response decision"
}
Use null for entities that are not mentioned.`,
		},
		Reply: ReplyPrompts{
			System: `You are an assistant for {{business_name}}, a {{business_type}} company in {{location}}
(specialization: {{specialization}}). You help coordinate projects, answer questions and assist team communication.

DECISION AUTHORITY:
{{authority}}

RESPONSE STYLE:
- Professional but friendly, direct and concise (1-3 sentences)
- Use facts from the available data; admit when you don't know
- Escalate appropriately

Return ONLY valid JSON:
{
  "reply": "the reply in the requested language",
  "confidence": 0-100,
  "action": "auto_send|queue_approval|escalate",
  "escalate_to": "person name or null",
  "reasoning": "why this reply and confidence",
  "missing_info": "information needed but not available",
  "suggested_followup": "what might be asked next"
}`,
			Guidance: map[string]string{
				"customer_complaint": `FOR CUSTOMER COMPLAINTS:
- Acknowledge the concern first
- Offer an immediate solution if simple
- Escalate to the manager for quality issues, to the owner if cost > EUR 1000`,
				"decision_required": `FOR DECISIONS:
- State clearly what decision is needed
- Present options with cost and impact
- Name the appropriate decision-maker; never decide above your authority`,
				"technical_problem": `FOR TECHNICAL PROBLEMS:
- Check whether a similar issue was solved before and suggest that solution
- If urgent, prioritize a quick workaround; if complex, suggest an on-site assessment`,
			},
			Urgent: "URGENT MESSAGE: respond quickly and clearly with immediately actionable information.",
		},
		Translator: TranslatorPrompts{
			Detect: `Detect the language of the text. Return ONLY JSON:
{"language_code": "two-letter code (hi/en/de/pl/ru/es/fr/it/pt/nl)", "language_name": "name", "confidence": 0-100}`,
			Translate: `You are an expert translator. Translate accurately to {{target_language}}.
- Keep meaning and tone exactly the same, use natural conversational language
- Use appropriate technical vocabulary for construction terms
- Preserve numbers, dates and measurements exactly; keep newlines
Return ONLY the translated text, nothing else.`,
		},
	}
}
