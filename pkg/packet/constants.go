package packet

const (
	// PacketHeaderLength is the length of the RADIUS packet header in bytes
	PacketHeaderLength = 20
	// MaxPacketLength is the maximum allowed RADIUS packet length (RFC 2865 section 3)
	MaxPacketLength = 4096
	// MinPacketLength is the minimum allowed RADIUS packet length
	MinPacketLength = PacketHeaderLength
	// AuthenticatorLength is the length of the authenticator field
	AuthenticatorLength = 16
	// AttributeHeaderLength is the length of attribute header (Type + Length)
	AttributeHeaderLength = 2
	// MaxAttributeValueLength is the longest value a single attribute can carry
	MaxAttributeValueLength = 253
)

// Attribute types the daemon itself interprets.
const (
	AttrUserName             uint8 = 1
	AttrUserPassword         uint8 = 2
	AttrCHAPPassword         uint8 = 3
	AttrNASIPAddress         uint8 = 4
	AttrReplyMessage         uint8 = 18
	AttrState                uint8 = 24
	AttrNASIdentifier        uint8 = 32
	AttrProxyState           uint8 = 33
	AttrAcctStatusType       uint8 = 40
	AttrAcctSessionID        uint8 = 44
	AttrCHAPChallenge        uint8 = 60
	AttrMessageAuthenticator uint8 = 80
)
