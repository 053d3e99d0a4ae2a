package dictionary

// StandardAttributes are the RFC 2865 and RFC 2866 attributes.
var StandardAttributes = []*AttributeDefinition{
	{ID: 1, Name: "User-Name", DataType: DataTypeString},
	{ID: 2, Name: "User-Password", DataType: DataTypeOctets, Encryption: EncryptionUserPassword},
	{ID: 3, Name: "CHAP-Password", DataType: DataTypeOctets},
	{ID: 4, Name: "NAS-IP-Address", DataType: DataTypeIPAddr},
	{ID: 5, Name: "NAS-Port", DataType: DataTypeInteger},
	{ID: 6, Name: "Service-Type", DataType: DataTypeInteger},
	{ID: 7, Name: "Framed-Protocol", DataType: DataTypeInteger},
	{ID: 8, Name: "Framed-IP-Address", DataType: DataTypeIPAddr},
	{ID: 9, Name: "Framed-IP-Netmask", DataType: DataTypeIPAddr},
	{ID: 10, Name: "Framed-Routing", DataType: DataTypeInteger},
	{ID: 11, Name: "Filter-Id", DataType: DataTypeString},
	{ID: 12, Name: "Framed-MTU", DataType: DataTypeInteger},
	{ID: 13, Name: "Framed-Compression", DataType: DataTypeInteger},
	{ID: 14, Name: "Login-IP-Host", DataType: DataTypeIPAddr},
	{ID: 15, Name: "Login-Service", DataType: DataTypeInteger},
	{ID: 16, Name: "Login-TCP-Port", DataType: DataTypeInteger},
	{ID: 18, Name: "Reply-Message", DataType: DataTypeString},
	{ID: 19, Name: "Callback-Number", DataType: DataTypeString},
	{ID: 20, Name: "Callback-Id", DataType: DataTypeString},
	{ID: 22, Name: "Framed-Route", DataType: DataTypeString},
	{ID: 23, Name: "Framed-IPX-Network", DataType: DataTypeIPAddr},
	{ID: 24, Name: "State", DataType: DataTypeOctets},
	{ID: 25, Name: "Class", DataType: DataTypeOctets},
	{ID: 26, Name: "Vendor-Specific", DataType: DataTypeOctets},
	{ID: 27, Name: "Session-Timeout", DataType: DataTypeInteger},
	{ID: 28, Name: "Idle-Timeout", DataType: DataTypeInteger},
	{ID: 29, Name: "Termination-Action", DataType: DataTypeInteger},
	{ID: 30, Name: "Called-Station-Id", DataType: DataTypeString},
	{ID: 31, Name: "Calling-Station-Id", DataType: DataTypeString},
	{ID: 32, Name: "NAS-Identifier", DataType: DataTypeString},
	{ID: 33, Name: "Proxy-State", DataType: DataTypeOctets},
	{ID: 34, Name: "Login-LAT-Service", DataType: DataTypeString},
	{ID: 35, Name: "Login-LAT-Node", DataType: DataTypeString},
	{ID: 36, Name: "Login-LAT-Group", DataType: DataTypeOctets},
	{ID: 37, Name: "Framed-AppleTalk-Link", DataType: DataTypeInteger},
	{ID: 38, Name: "Framed-AppleTalk-Network", DataType: DataTypeInteger},
	{ID: 39, Name: "Framed-AppleTalk-Zone", DataType: DataTypeString},
	{ID: 40, Name: "Acct-Status-Type", DataType: DataTypeInteger},
	{ID: 41, Name: "Acct-Delay-Time", DataType: DataTypeInteger},
	{ID: 42, Name: "Acct-Input-Octets", DataType: DataTypeInteger},
	{ID: 43, Name: "Acct-Output-Octets", DataType: DataTypeInteger},
	{ID: 44, Name: "Acct-Session-Id", DataType: DataTypeString},
	{ID: 45, Name: "Acct-Authentic", DataType: DataTypeInteger},
	{ID: 46, Name: "Acct-Session-Time", DataType: DataTypeInteger},
	{ID: 47, Name: "Acct-Input-Packets", DataType: DataTypeInteger},
	{ID: 48, Name: "Acct-Output-Packets", DataType: DataTypeInteger},
	{ID: 49, Name: "Acct-Terminate-Cause", DataType: DataTypeInteger},
	{ID: 50, Name: "Acct-Multi-Session-Id", DataType: DataTypeString},
	{ID: 51, Name: "Acct-Link-Count", DataType: DataTypeInteger},
	{ID: 60, Name: "CHAP-Challenge", DataType: DataTypeOctets},
	{ID: 61, Name: "NAS-Port-Type", DataType: DataTypeInteger},
	{ID: 62, Name: "Port-Limit", DataType: DataTypeInteger},
	{ID: 63, Name: "Login-LAT-Port", DataType: DataTypeString},
	{ID: 80, Name: "Message-Authenticator", DataType: DataTypeOctets},
}
