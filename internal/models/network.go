package models

// NetworkState is a snapshot of platform connectivity.
type NetworkState struct {
	IsConnected         bool   `json:"is_connected"`
	IsInternetReachable bool   `json:"is_internet_reachable"`
	TransportType       string `json:"transport_type"`
}

// IsOnline reports whether the device can be expected to reach the
// remote API. Connectivity without reachability (captive portal,
// link-local only) counts as offline.
func (s NetworkState) IsOnline() bool {
	return s.IsConnected && s.IsInternetReachable
}
