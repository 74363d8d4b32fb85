package builder

import (
	"net/url"

	"github.com/mssola/user_agent"
)

type userAgentInfo struct {
	Platform string
	OS       string
	Browser  string
}

// parseUserAgent extracts platform, OS and browser from a raw userAgent
// string. Event logs sometimes carry the string URL-encoded; decode first
// and fall back to the raw value if that fails.
func parseUserAgent(uaString string) userAgentInfo {
	str, err := url.QueryUnescape(uaString)
	if err != nil {
		str = uaString
	}
	ua := user_agent.New(str)
	osInfo := ua.OSInfo()
	browserName, _ := ua.Browser()
	return userAgentInfo{
		Platform: ua.Platform(),
		OS:       osInfo.FullName,
		Browser:  browserName,
	}
}
