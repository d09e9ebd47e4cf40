package config

import "github.com/pion/webrtc/v4"

// ICEConfiguration builds the peer connection configuration handed to clients
func (c WebRTCConfig) ICEConfiguration() webrtc.Configuration {
	servers := make([]webrtc.ICEServer, 0, 2)
	if len(c.STUNURLs) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: append([]string(nil), c.STUNURLs...)})
	}
	if c.TURNURL != "" {
		servers = append(servers, webrtc.ICEServer{
			URLs:       []string{c.TURNURL},
			Username:   c.TURNUsername,
			Credential: c.TURNCredential,
		})
	}
	return webrtc.Configuration{
		ICEServers:           servers,
		ICECandidatePoolSize: c.ICECandidatePoolSize,
	}
}
