package providers

// OpenAI describes the OpenAI Responses API.
func OpenAI() Descriptor {
	return Descriptor{
		ID:             "openai",
		DisplayName:    "OpenAI",
		DefaultBaseURL: "https://api.openai.com/v1",
		BaseURLEnv:     "OPENAI_BASE_URL",
		ConfigSources: []CredentialSource{
			{Key: "providers.openai.api_key"},
			{Key: "openai_api_key", Deprecated: true},
		},
		EnvVars: []string{"OPENAI_API_KEY", "OPENAI_ACCESS_TOKEN"},
		ModelPrefixes: []string{
			"gpt-",
			"chatgpt-",
			"o1",
			"o3",
			"o4",
			"codex-",
			"computer-use-",
			"ft:",
		},
	}
}

// XAI describes the xAI Responses API.
func XAI() Descriptor {
	return Descriptor{
		ID:             "xai",
		DisplayName:    "xAI",
		DefaultBaseURL: "https://api.x.ai/v1",
		BaseURLEnv:     "XAI_BASE_URL",
		ConfigSources: []CredentialSource{
			{Key: "providers.xai.api_key"},
			{Key: "xai_api_key", Deprecated: true},
		},
		EnvVars:       []string{"XAI_API_KEY", "GROK_API_KEY"},
		ModelPrefixes: []string{"grok"},
		Unsupported: []UnsupportedOption{
			{
				Path:    []string{"reasoning", "effort"},
				Message: "xAI models do not support reasoning.effort; the value is ignored or rejected upstream",
			},
			{
				Path:    []string{"text", "verbosity"},
				Message: "xAI models do not support text.verbosity; the value is ignored or rejected upstream",
			},
		},
	}
}
