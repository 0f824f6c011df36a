// Package importer parses subscription credentials from the text formats
// people actually trade them in: get.php M3U links, stalker credential
// strings, portal-then-MAC-list blocks, and a structured YAML file. It also
// renders the export form of an account.
package importer

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net/url"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/account"
)

var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

// ParseGetPHPURL extracts Xtream credentials from a get.php or player_api.php
// style link. The server base URL is rebuilt from scheme and host, dropping
// default ports. Username is required; password may be empty.
func ParseGetPHPURL(raw string) (account.XtreamCreds, error) {
	var creds account.XtreamCreds
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return creds, fmt.Errorf("importer: parse url: %w", err)
	}
	q := u.Query()
	username := q.Get("username")
	if u.Scheme == "" || u.Hostname() == "" || username == "" {
		return creds, fmt.Errorf("importer: invalid URL: missing scheme, host, or username parameter")
	}
	base := u.Scheme + "://" + u.Hostname()
	if p := u.Port(); p != "" && !((u.Scheme == "http" && p == "80") || (u.Scheme == "https" && p == "443")) {
		base += ":" + p
	}
	creds.ServerBaseURL = base
	creds.Username = username
	creds.Password = q.Get("password")
	return creds, nil
}

// parseStalkerString parses "stalker_portal:<url>,mac:<mac>".
func parseStalkerString(line string) (account.StalkerCreds, error) {
	var creds account.StalkerCreds
	parts := strings.SplitN(line, ",", 2)
	if len(parts) < 2 {
		return creds, fmt.Errorf("importer: malformed stalker string, missing comma")
	}
	portalPart := strings.TrimSpace(parts[0])
	macPart := strings.TrimSpace(parts[1])
	if !strings.HasPrefix(portalPart, "stalker_portal:") || !strings.HasPrefix(macPart, "mac:") {
		return creds, fmt.Errorf("importer: malformed stalker string, missing prefixes")
	}
	portal := strings.TrimSpace(strings.TrimPrefix(portalPart, "stalker_portal:"))
	mac := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(macPart, "mac:")))
	if !strings.HasPrefix(portal, "http://") && !strings.HasPrefix(portal, "https://") {
		return creds, fmt.Errorf("importer: invalid stalker portal URL: %s", portal)
	}
	if !macPattern.MatchString(mac) {
		return creds, fmt.Errorf("importer: invalid stalker MAC address: %s", mac)
	}
	creds.PortalURL = portal
	creds.MACAddress = mac
	return creds, nil
}

// Result is the outcome of a bulk parse.
type Result struct {
	Accounts []account.Account
	Skipped  int
}

// ParseBulk reads credential lines from r. Supported, in priority order:
// "#" comments, "stalker_portal:...,mac:..." strings, get.php links, bare
// portal URLs (which set the context for following MAC-only lines), and MAC
// addresses bound to the last seen portal URL. Unrecognized lines are
// counted, logged, and skipped.
func ParseBulk(r io.Reader, defaultCategory string) (Result, error) {
	var res Result
	var portalContext string
	sc := bufio.NewScanner(r)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		isStalkerString := strings.HasPrefix(line, "stalker_portal:")
		isXCLink := strings.Contains(line, "get.php?")
		isMAC := macPattern.MatchString(line)
		isPortalURL := (strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://")) &&
			!isXCLink && !isStalkerString

		switch {
		case isStalkerString:
			portalContext = ""
			creds, err := parseStalkerString(line)
			if err != nil {
				log.Printf("importer: line %d: %v", lineNum, err)
				res.Skipped++
				continue
			}
			res.Accounts = append(res.Accounts, stalkerAccount(creds, defaultCategory, lineNum))

		case isXCLink:
			portalContext = ""
			creds, err := ParseGetPHPURL(line)
			if err != nil {
				log.Printf("importer: line %d: %v", lineNum, err)
				res.Skipped++
				continue
			}
			host := hostOf(creds.ServerBaseURL)
			res.Accounts = append(res.Accounts, account.Account{
				Name:     fmt.Sprintf("%s_%s_L%d", host, creds.Username, lineNum),
				Category: defaultCategory,
				Type:     account.TypeXtream,
				Xtream:   creds,
			})

		case isPortalURL:
			if _, err := url.ParseRequestURI(line); err != nil {
				log.Printf("importer: line %d: malformed portal URL: %s", lineNum, line)
				res.Skipped++
				continue
			}
			portalContext = line

		case isMAC && portalContext != "":
			creds := account.StalkerCreds{
				PortalURL:  portalContext,
				MACAddress: strings.ToUpper(line),
			}
			res.Accounts = append(res.Accounts, stalkerAccount(creds, defaultCategory, lineNum))

		default:
			if isMAC {
				log.Printf("importer: line %d: MAC %s has no preceding portal URL", lineNum, line)
			} else {
				log.Printf("importer: line %d: unrecognized line", lineNum)
			}
			res.Skipped++
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("importer: read: %w", err)
	}
	return res, nil
}

func stalkerAccount(creds account.StalkerCreds, category string, lineNum int) account.Account {
	host := hostOf(creds.PortalURL)
	if host == "" {
		host = "stalker_host"
	}
	macFlat := strings.ReplaceAll(creds.MACAddress, ":", "")
	return account.Account{
		Name:     fmt.Sprintf("%s_%s_L%d", host, macFlat, lineNum),
		Category: category,
		Type:     account.TypeStalker,
		Stalker:  creds,
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "host"
	}
	if h := u.Hostname(); h != "" {
		return h
	}
	return "host"
}

// yamlEntry is one record in a structured import file.
type yamlEntry struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Type     string `yaml:"type"`
	Server   string `yaml:"server"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Portal   string `yaml:"portal"`
	MAC      string `yaml:"mac"`
}

// ParseYAML reads a structured import file: a top-level "entries" list where
// each item carries type "xc" or "stalker" and the matching credential
// fields. Type defaults to xc when a server is present, stalker when a
// portal is.
func ParseYAML(r io.Reader) ([]account.Account, error) {
	var doc struct {
		Entries []yamlEntry `yaml:"entries"`
	}
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("importer: yaml: %w", err)
	}
	out := make([]account.Account, 0, len(doc.Entries))
	for i, e := range doc.Entries {
		typ := account.Type(e.Type)
		if e.Type == "" {
			if e.Portal != "" {
				typ = account.TypeStalker
			} else {
				typ = account.TypeXtream
			}
		}
		acc := account.Account{
			Name:     e.Name,
			Category: e.Category,
			Type:     typ,
		}
		switch typ {
		case account.TypeXtream:
			if e.Server == "" || e.Username == "" {
				return nil, fmt.Errorf("importer: entry %d: xc entry needs server and username", i+1)
			}
			acc.Xtream = account.XtreamCreds{ServerBaseURL: e.Server, Username: e.Username, Password: e.Password}
		case account.TypeStalker:
			if e.Portal == "" || e.MAC == "" {
				return nil, fmt.Errorf("importer: entry %d: stalker entry needs portal and mac", i+1)
			}
			acc.Stalker = account.StalkerCreds{PortalURL: e.Portal, MACAddress: account.NormalizeMAC(e.MAC)}
		default:
			return nil, fmt.Errorf("importer: entry %d: unknown type %q", i+1, e.Type)
		}
		if acc.Name == "" {
			acc.Name = fmt.Sprintf("entry_%d", i+1)
		}
		out = append(out, acc)
	}
	return out, nil
}

// ExportLink renders the shareable form of an account: an M3U get.php link
// for Xtream entries, a stalker credential string for portal entries.
func ExportLink(acc account.Account) string {
	if acc.Type == account.TypeStalker {
		return fmt.Sprintf("stalker_portal:%s,mac:%s", acc.Stalker.PortalURL, acc.Stalker.MACAddress)
	}
	return fmt.Sprintf("%s/get.php?username=%s&password=%s&type=m3u_plus&output=ts",
		acc.Xtream.ServerBaseURL, acc.Xtream.Username, acc.Xtream.Password)
}
