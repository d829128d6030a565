package pms

import "strings"

// ClassifyChannel decides direct vs OTA from the raw reservation fields:
// origin above 1 means a channel booking, and the channel names catch
// manual entries the host labeled after the fact.
func ClassifyChannel(otaChannelName, salesChannelName string, origin int) Channel {
	ota := strings.ToLower(otaChannelName)
	sales := strings.ToLower(salesChannelName)
	if origin > 1 ||
		strings.Contains(ota, "booking") || strings.Contains(ota, "airbnb") ||
		strings.Contains(sales, "booking") || strings.Contains(sales, "airbnb") {
		return ChannelOTA
	}
	return ChannelDirect
}
