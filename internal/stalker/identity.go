package stalker

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Device identity is derived entirely from the MAC address so the same
// account always presents the same hardware fingerprint to the portal.

// Serial is the STB serial number: first 13 hex chars of MD5(mac), uppercased.
func Serial(mac string) string {
	sum := md5.Sum([]byte(mac))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:13]
}

// DeviceID is SHA256(mac) uppercased. Portals expect the same value for
// device_id and device_id2.
func DeviceID(mac string) string {
	sum := sha256.Sum256([]byte(mac))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Signature binds mac, serial and both device IDs: SHA256(mac+sn+dev+dev),
// uppercased. Required by get_profile on portals that enforce auth_second_step.
func Signature(mac string) string {
	devID := DeviceID(mac)
	src := mac + Serial(mac) + devID + devID
	sum := sha256.Sum256([]byte(src))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

const tokenChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomToken generates the 32-char uppercase alphanumeric token used by the
// manual handshake fallback.
func randomToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken; a fixed token
		// still lets the fallback proceed.
		return strings.Repeat("A", 32)
	}
	for i, b := range buf {
		buf[i] = tokenChars[int(b)%len(tokenChars)]
	}
	return string(buf)
}

// prehash is SHA1(token) in lowercase hex, submitted alongside a locally
// generated token as the fallback authentication proof.
func prehash(token string) string {
	sum := sha1.Sum([]byte(token))
	return hex.EncodeToString(sum[:])
}
