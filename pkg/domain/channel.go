package domain

// Well-known broadcast channels. A connection belongs to exactly one channel
// for its lifetime.
const (
	ChannelAdmin   = "admin-system"
	ChannelBetting = "betting:notifications"
	ChannelGlobal  = "global"
)

// FightChannel returns the per-fight broadcast channel name.
func FightChannel(fightID string) string {
	return "event:" + fightID
}
