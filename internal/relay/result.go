package relay

// Kind discriminates the outcome of a connect operation. The three-way
// distinction (success, not found, error) is deliberate; callers must not
// collapse it to a boolean.
type Kind int

const (
	KindOK Kind = iota
	KindNotFound
	KindError
)

// Result is the outcome of DiscoverAndConnect or ConnectWithURL.
type Result struct {
	Kind    Kind
	URL     string
	Message string
}

// Tagged renders the loosely typed sentinel form consumed by the UI boundary:
// "ok:<url>" (or bare "ok" when no URL is carried), "not_found", or
// "error:<message>".
func (r Result) Tagged() string {
	switch r.Kind {
	case KindOK:
		if r.URL != "" {
			return "ok:" + r.URL
		}
		return "ok"
	case KindNotFound:
		return "not_found"
	default:
		return "error:" + r.Message
	}
}

func okResult(url string) Result {
	return Result{Kind: KindOK, URL: url}
}

func notFoundResult() Result {
	return Result{Kind: KindNotFound}
}

func errorResult(message string) Result {
	return Result{Kind: KindError, Message: message}
}
