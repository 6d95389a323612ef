package correlate

import "fmt"

// RouteKind is the closed set of things a transaction can be.
type RouteKind int

const (
	RouteUnrecognized RouteKind = iota
	RouteNewDispatch
	RoutePlaylist
	RouteVariant
	RouteKeyFetch
)

func (k RouteKind) String() string {
	switch k {
	case RouteUnrecognized:
		return "unrecognized"
	case RouteNewDispatch:
		return "dispatch"
	case RoutePlaylist:
		return "playlist"
	case RouteVariant:
		return "variant"
	case RouteKeyFetch:
		return "key"
	default:
		return fmt.Sprintf("route(%d)", int(k))
	}
}

// Route is the classifier verdict. Session is set for RoutePlaylist and
// RouteVariant only.
type Route struct {
	Kind    RouteKind
	Session SessionID
}

// Endpoints are the fixed URLs that open sessions and deliver keys.
type Endpoints struct {
	DispatchURL string
	KeyURL      string
}

// Index answers which session is waiting on a URL.
type Index interface {
	PlaylistWaiter(url string) (SessionID, bool)
	VariantWaiter(url string) (SessionID, bool)
}

// Classify maps a request URL to the stage it could advance. Matching is
// exact and tried in order: dispatch endpoint, playlist index, variant
// index, key endpoint.
func Classify(url string, endpoints Endpoints, index Index) Route {
	if url == endpoints.DispatchURL {
		return Route{Kind: RouteNewDispatch}
	}
	if id, ok := index.PlaylistWaiter(url); ok {
		return Route{Kind: RoutePlaylist, Session: id}
	}
	if id, ok := index.VariantWaiter(url); ok {
		return Route{Kind: RouteVariant, Session: id}
	}
	if url == endpoints.KeyURL {
		return Route{Kind: RouteKeyFetch}
	}
	return Route{Kind: RouteUnrecognized}
}
