package domain

// GenerateParameters controls credential generation. Fields that do not apply
// to the requested type are ignored.
type GenerateParameters struct {
	Password PasswordParameters
	// KeyLength is the RSA modulus size in bits for ssh and rsa secrets.
	KeyLength int
	// SSHComment is appended to the OpenSSH public key.
	SSHComment string
	// Username is used for user secrets; a random one is generated when empty.
	Username string
}

// Credential is generated secret material ready to be stored.
type Credential struct {
	Value   []byte
	Details Details
	// Parameters is stored in the password parameters field when set.
	Parameters *PasswordParameters
}
