package providers

// template is a predefined provider skeleton. User overrides win over
// these fields when creating a provider from a template.
type template struct {
	Name          string
	BaseURL       string
	DefaultModel  string
	Models        []string
	ContextWindow int
}

// Templates is the closed set of predefined provider templates, per
// spec.md §4.7.
var Templates = map[string]template{
	"openai": {
		Name:          "OpenAI",
		BaseURL:       "https://api.openai.com/v1",
		DefaultModel:  "gpt-4o",
		Models:        []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo"},
		ContextWindow: 128000,
	},
	"kimi": {
		Name:          "Kimi (Moonshot)",
		BaseURL:       "https://api.moonshot.cn/v1",
		DefaultModel:  "moonshot-v1-8k",
		Models:        []string{"moonshot-v1-8k", "moonshot-v1-32k", "moonshot-v1-128k"},
		ContextWindow: 8000,
	},
	"qwen": {
		Name:          "Qwen (Alibaba)",
		BaseURL:       "https://dashscope.aliyuncs.com/compatible-mode/v1",
		DefaultModel:  "qwen-max",
		Models:        []string{"qwen-max", "qwen-plus", "qwen-turbo", "qwen-coder-plus"},
		ContextWindow: 32000,
	},
	"claude": {
		Name:         "Claude (Anthropic)",
		BaseURL:      "https://api.anthropic.com/v1",
		DefaultModel: "claude-3-5-sonnet-20241022",
		Models: []string{
			"claude-3-5-sonnet-20241022",
			"claude-3-5-haiku-20241022",
			"claude-3-opus-20240229",
		},
		ContextWindow: 200000,
	},
	"glm": {
		Name:          "ChatGLM (Zhipu)",
		BaseURL:       "https://open.bigmodel.cn/api/paas/v4",
		DefaultModel:  "glm-4-plus",
		Models:        []string{"glm-4-plus", "glm-4-air", "glm-4-flash", "glm-4-long"},
		ContextWindow: 128000,
	},
	"siliconflow": {
		Name:         "Silicon Flow",
		BaseURL:      "https://api.siliconflow.cn/v1",
		DefaultModel: "Qwen/Qwen2.5-72B-Instruct",
		Models: []string{
			"Qwen/Qwen2.5-72B-Instruct",
			"meta-llama/Llama-3.3-70B-Instruct",
			"deepseek-ai/DeepSeek-V2.5",
		},
		ContextWindow: 32000,
	},
	"deepseek": {
		Name:          "DeepSeek",
		BaseURL:       "https://api.deepseek.com/v1",
		DefaultModel:  "deepseek-chat",
		Models:        []string{"deepseek-chat", "deepseek-coder"},
		ContextWindow: 64000,
	},
	"azure": {
		Name:          "Azure OpenAI",
		BaseURL:       "", // user must provide endpoint
		DefaultModel:  "gpt-4",
		Models:        []string{"gpt-4", "gpt-4-32k", "gpt-35-turbo"},
		ContextWindow: 8000,
	},
}

// TemplateView is the management-API projection of a template, annotated
// with its id.
type TemplateView struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	BaseURL       string   `json:"base_url"`
	DefaultModel  string   `json:"default_model"`
	Models        []string `json:"models"`
	ContextWindow int      `json:"context_window"`
}

// ListTemplates returns every template annotated with its key.
func ListTemplates() []TemplateView {
	out := make([]TemplateView, 0, len(Templates))
	for id, tmpl := range Templates {
		out = append(out, TemplateView{
			ID:            id,
			Name:          tmpl.Name,
			BaseURL:       tmpl.BaseURL,
			DefaultModel:  tmpl.DefaultModel,
			Models:        tmpl.Models,
			ContextWindow: tmpl.ContextWindow,
		})
	}
	return out
}

// Overrides carries caller-supplied field overrides for
// CreateFromTemplate; a nil pointer field means "use the template's
// value".
type Overrides struct {
	Name          *string
	BaseURL       *string
	DefaultModel  *string
	Models        []string
	Headers       map[string]string
	ExtraBody     map[string]any
	TimeoutSec    *int
	MaxRetries    *int
	ContextWindow *int
	Enabled       *bool
}

// CreateFromTemplate builds a Provider from a named template, applying
// apiKey and any overrides (overrides win). providerID defaults to
// templateID when empty. Returns false if templateID is unknown.
func CreateFromTemplate(templateID, providerID, apiKey string, o Overrides) (Provider, bool) {
	tmpl, ok := Templates[templateID]
	if !ok {
		return Provider{}, false
	}

	if providerID == "" {
		providerID = templateID
	}

	p := Provider{
		ID:            providerID,
		Name:          tmpl.Name,
		BaseURL:       tmpl.BaseURL,
		APIKey:        apiKey,
		DefaultModel:  tmpl.DefaultModel,
		Models:        tmpl.Models,
		TimeoutSec:    DefaultTimeoutSec,
		MaxRetries:    DefaultMaxRetries,
		ContextWindow: tmpl.ContextWindow,
		Enabled:       true,
		Headers:       map[string]string{},
		ExtraBody:     map[string]any{},
	}

	if o.Name != nil {
		p.Name = *o.Name
	}
	if o.BaseURL != nil {
		p.BaseURL = *o.BaseURL
	}
	if o.DefaultModel != nil {
		p.DefaultModel = *o.DefaultModel
	}
	if o.Models != nil {
		p.Models = o.Models
	}
	if o.Headers != nil {
		p.Headers = o.Headers
	}
	if o.ExtraBody != nil {
		p.ExtraBody = o.ExtraBody
	}
	if o.TimeoutSec != nil {
		p.TimeoutSec = *o.TimeoutSec
	}
	if o.MaxRetries != nil {
		p.MaxRetries = *o.MaxRetries
	}
	if o.ContextWindow != nil {
		p.ContextWindow = *o.ContextWindow
	}
	if o.Enabled != nil {
		p.Enabled = *o.Enabled
	}

	return p, true
}
