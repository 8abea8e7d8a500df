package providers

import "testing"

func TestAddFirstProviderBecomesDefault(t *testing.T) {
	r := NewRegistry()
	r.Add(Provider{ID: "openai", Enabled: true}, false)

	p, ok := r.Get("")
	if !ok || p.ID != "openai" {
		t.Errorf("expected first added provider to become default, got %+v ok=%v", p, ok)
	}
}

func TestRemoveDefaultFallsBackToNext(t *testing.T) {
	r := NewRegistry()
	r.Add(Provider{ID: "a", Enabled: true}, false)
	r.Add(Provider{ID: "b", Enabled: true}, false)

	r.Remove("a")

	p, ok := r.Get("")
	if !ok || p.ID != "b" {
		t.Errorf("expected default to fall back to remaining provider b, got %+v ok=%v", p, ok)
	}
}

func TestGetForModelByPrefix(t *testing.T) {
	r := NewRegistry()
	r.Add(Provider{ID: "kimi", Enabled: true, Models: []string{"moonshot-v1-8k"}}, false)
	r.Add(Provider{ID: "openai", Enabled: true, Models: []string{"gpt-4o"}}, false)

	p, ok := r.GetForModel("kimi:moonshot-v1-8k")
	if !ok || p.ID != "kimi" {
		t.Errorf("expected prefix routing to kimi, got %+v ok=%v", p, ok)
	}
}

func TestGetForModelByModelsList(t *testing.T) {
	r := NewRegistry()
	r.Add(Provider{ID: "openai", Enabled: true, Models: []string{"gpt-4o"}}, false)

	p, ok := r.GetForModel("gpt-4o")
	if !ok || p.ID != "openai" {
		t.Errorf("expected model-list routing to openai, got %+v ok=%v", p, ok)
	}
}

func TestGetForModelFallsBackToDefault(t *testing.T) {
	r := NewRegistry()
	r.Add(Provider{ID: "openai", Enabled: true, Models: []string{"gpt-4o"}}, false)

	p, ok := r.GetForModel("some-unknown-model")
	if !ok || p.ID != "openai" {
		t.Errorf("expected fallback to default provider, got %+v ok=%v", p, ok)
	}
}

func TestGetForModelIgnoresDisabledProvider(t *testing.T) {
	r := NewRegistry()
	r.Add(Provider{ID: "openai", Enabled: false, Models: []string{"gpt-4o"}}, false)

	_, ok := r.GetForModel("gpt-4o")
	if ok {
		t.Errorf("disabled provider should not be matched")
	}
}

func TestToViewNeverExposesAPIKey(t *testing.T) {
	p := Provider{ID: "openai", APIKey: "sk-secret"}
	view := p.ToView()

	if view.HasAPIKey != true {
		t.Errorf("expected has_api_key=true")
	}
	// ProviderView has no APIKey field at all; this test documents the
	// contract that to_dict()/ToView() must never carry the secret.
}

func TestCreateFromTemplateUnknownReturnsFalse(t *testing.T) {
	_, ok := CreateFromTemplate("nonexistent", "", "", Overrides{})
	if ok {
		t.Errorf("expected unknown template to fail")
	}
}

func TestCreateFromTemplateAppliesOverrides(t *testing.T) {
	name := "Custom OpenAI"
	p, ok := CreateFromTemplate("openai", "", "sk-key", Overrides{Name: &name})
	if !ok {
		t.Fatalf("expected openai template to resolve")
	}
	if p.Name != name {
		t.Errorf("override should win, got name=%q", p.Name)
	}
	if p.ID != "openai" {
		t.Errorf("expected default id to be template id, got %q", p.ID)
	}
	if p.APIKey != "sk-key" {
		t.Errorf("expected api key to be set")
	}
}

func TestStripModelPrefixOnlyStripsMatchingProvider(t *testing.T) {
	if got := StripModelPrefix("kimi:moonshot-v1-8k", "kimi"); got != "moonshot-v1-8k" {
		t.Errorf("StripModelPrefix = %q, want moonshot-v1-8k", got)
	}
	if got := StripModelPrefix("kimi:moonshot-v1-8k", "openai"); got != "kimi:moonshot-v1-8k" {
		t.Errorf("StripModelPrefix should not strip a non-matching provider prefix, got %q", got)
	}
}
