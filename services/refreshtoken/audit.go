package refreshtoken

import (
	"github.com/mileusna/useragent"
	"go.uber.org/zap"
)

// deviceFields describes the presenting client for audit entries.
func deviceFields(md TokenMetadata) []zap.Field {
	fields := []zap.Field{
		zap.String("ip_address", md.IPAddress.String()),
	}
	if md.SessionID != "" {
		fields = append(fields, zap.String("session_id", md.SessionID))
	}

	raw, ok := md.UserAgent.Get()
	if !ok {
		return fields
	}

	ua := useragent.Parse(raw)
	device := "desktop"
	switch {
	case ua.Bot:
		device = "bot"
	case ua.Tablet:
		device = "tablet"
	case ua.Mobile:
		device = "mobile"
	}

	return append(fields,
		zap.String("user_agent", raw),
		zap.String("browser", ua.Name),
		zap.String("browser_version", ua.Version),
		zap.String("os", ua.OS),
		zap.String("device_type", device))
}

func recordFields(rec *RefreshToken) []zap.Field {
	fields := []zap.Field{
		zap.String("user_id", rec.UserID),
		zap.String("token_id", rec.ID),
		zap.Int("rotation_count", rec.RotationCount),
	}
	if rec.ParentToken != nil {
		fields = append(fields, zap.String("parent_token", *rec.ParentToken))
	}
	return fields
}
