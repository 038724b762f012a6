/*
Package providers describes the Responses API backends and routes model names
to them.

Both built-in providers speak the same wire format: POST {base_url}/responses
with a bearer token, answering with a response object or, when "stream" is
true, a server-sent event stream. A provider therefore needs no request or
response translation; it is fully described by a Descriptor.

# Routing

A model string is routed in two steps:

 1. "provider:model" selects the provider explicitly and sends "model"
    upstream, for example "xai:grok-4".
 2. A bare name is matched case-insensitively against each provider's
    ModelPrefixes in registration order. The first match wins, so a prefix
    claimed by two providers goes to the one registered first.

Fine-tuned OpenAI ids such as "ft:gpt-4.1-mini:org::abc" contain colons but
are not provider prefixes; they fall back to prefix matching.

# Base URLs

The base URL of a provider comes from, in order:

	providers.<id>.base_url   (config file)
	<BaseURLEnv>              (environment, e.g. XAI_BASE_URL)
	DefaultBaseURL

# Credentials

FetchCredential looks at the ConfigSources in order, then at EnvVars. A hit
on a source marked Deprecated logs a warning once per registry and records it
in Diagnostics. When nothing is found the error lists every environment
variable that was consulted:

	no API key configured for provider "xai"; set providers.xai.api_key in the config file or one of: XAI_API_KEY, GROK_API_KEY

# Unsupported options

Some options are accepted by one provider and rejected or ignored by the
other. A Descriptor lists them as UnsupportedOption paths; WarnUnsupported
returns (and logs) one advisory per path present in the request options. The
request is still sent unchanged. When a conversation is continued on such a
provider, values carried over from the previous response at those paths are
dropped instead.

# Adding a provider

Define a constructor returning a Descriptor and register it:

	func Mistral() providers.Descriptor {
		return providers.Descriptor{
			ID:             "mistral",
			DisplayName:    "Mistral",
			DefaultBaseURL: "https://api.mistral.ai/v1",
			BaseURLEnv:     "MISTRAL_BASE_URL",
			ConfigSources:  []providers.CredentialSource{{Key: "providers.mistral.api_key"}},
			EnvVars:        []string{"MISTRAL_API_KEY"},
			ModelPrefixes:  []string{"mistral-", "codestral-"},
		}
	}

	registry.Initialize()
	registry.Register(Mistral())

Registering an id again replaces its descriptor but keeps its original
position in the routing order.
*/
package providers
