package transit

// RouteResult is a computed route between two stations. The JSON shape is the
// wire format shared by the gateway, the routing service and the cache.
type RouteResult struct {
	Path          []string `json:"path"`
	EstimatedTime float64  `json:"estimated_time"`
	Distance      *float64 `json:"distance"`
	BaseScore     float64  `json:"base_score"`
	Cached        bool     `json:"cached"`
}

// Source returns the first station of the path.
func (r *RouteResult) Source() string {
	if len(r.Path) == 0 {
		return ""
	}
	return r.Path[0]
}

// Destination returns the last station of the path.
func (r *RouteResult) Destination() string {
	if len(r.Path) == 0 {
		return ""
	}
	return r.Path[len(r.Path)-1]
}

// Hops is the number of edges traversed.
func (r *RouteResult) Hops() int {
	if len(r.Path) == 0 {
		return 0
	}
	return len(r.Path) - 1
}

// DistanceOrZero dereferences Distance.
func (r *RouteResult) DistanceOrZero() float64 {
	if r.Distance == nil {
		return 0
	}
	return *r.Distance
}

// Clone returns a deep copy so callers can flip Cached without racing
// other holders of the same result.
func (r *RouteResult) Clone() *RouteResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Path = append([]string(nil), r.Path...)
	if r.Distance != nil {
		d := *r.Distance
		out.Distance = &d
	}
	return &out
}
