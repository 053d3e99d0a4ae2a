package dictionary

// DataType represents the data type of an attribute
type DataType string

const (
	DataTypeString  DataType = "string"
	DataTypeOctets  DataType = "octets"
	DataTypeInteger DataType = "integer"
	DataTypeIPAddr  DataType = "ipaddr"
	DataTypeDate    DataType = "date"
)

// EncryptionType represents the encryption type of an attribute
type EncryptionType string

const (
	EncryptionNone         EncryptionType = ""
	EncryptionUserPassword EncryptionType = "user-password"
)

// AttributeDefinition defines a standard RADIUS attribute
type AttributeDefinition struct {
	ID         uint8          `yaml:"id"`
	Name       string         `yaml:"name"`
	DataType   DataType       `yaml:"data_type"`
	Encryption EncryptionType `yaml:"encryption,omitempty"`
}
