// Package providers implements the review adapters for each supported LLM
// provider, the registry that shares them, and the retry layer that turns a
// single attempt into a resilient call.
//
// Supported providers: Anthropic (Claude), OpenAI (GPT), Google (Gemini, via
// the genai SDK), and Ollama / LMStudio for local models.
//
// Adapters make exactly one attempt per GenerateReview call and report
// failures as *Error values tagged with a Kind. [Retrier] owns every retry
// decision: rate limits and server faults back off exponentially with jitter,
// timeouts wait a short fixed interval, malformed responses get a smaller
// attempt budget, and configuration errors fail immediately.
//
// Credentials are checked locally by [ValidateCredential] before any request
// is built. HTTP clients are injected so that tests can redirect calls to
// local httptest servers without making live API requests.
//
// Use a [Registry] to obtain adapters by [Config].
package providers
