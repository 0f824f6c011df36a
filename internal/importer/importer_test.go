package importer

import (
	"strings"
	"testing"

	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/account"
)

func TestParseGetPHPURL(t *testing.T) {
	creds, err := ParseGetPHPURL("http://panel.example:8080/get.php?username=alice&password=s3cret&type=m3u_plus")
	if err != nil {
		t.Fatalf("ParseGetPHPURL: %v", err)
	}
	if creds.ServerBaseURL != "http://panel.example:8080" {
		t.Errorf("base = %q", creds.ServerBaseURL)
	}
	if creds.Username != "alice" || creds.Password != "s3cret" {
		t.Errorf("creds = %+v", creds)
	}
}

func TestParseGetPHPURL_defaultPortDropped(t *testing.T) {
	creds, err := ParseGetPHPURL("http://panel.example:80/get.php?username=a&password=b")
	if err != nil {
		t.Fatalf("ParseGetPHPURL: %v", err)
	}
	if creds.ServerBaseURL != "http://panel.example" {
		t.Errorf("base = %q, want default port dropped", creds.ServerBaseURL)
	}

	creds, err = ParseGetPHPURL("https://panel.example:443/get.php?username=a")
	if err != nil {
		t.Fatalf("ParseGetPHPURL https: %v", err)
	}
	if creds.ServerBaseURL != "https://panel.example" {
		t.Errorf("https base = %q", creds.ServerBaseURL)
	}
	if creds.Password != "" {
		t.Errorf("password = %q, want empty", creds.Password)
	}
}

func TestParseGetPHPURL_invalid(t *testing.T) {
	bad := []string{
		"panel.example/get.php?username=a",      // no scheme
		"http://panel.example/get.php?type=m3u", // no username
		"http:///get.php?username=a",            // no host
	}
	for _, raw := range bad {
		if _, err := ParseGetPHPURL(raw); err == nil {
			t.Errorf("ParseGetPHPURL(%q) succeeded, want error", raw)
		}
	}
}

func TestParseBulk(t *testing.T) {
	input := `# my subscriptions
http://xc.example/get.php?username=bob&password=pw&type=m3u_plus
stalker_portal:http://portal.example/c/,mac:00:1A:79:AA:BB:CC

http://maclist.example/c/
00:1A:79:11:22:33
00:1A:79:44:55:66
garbage line
00:1A:79:99:88:77
`
	res, err := ParseBulk(strings.NewReader(input), "Imported")
	if err != nil {
		t.Fatalf("ParseBulk: %v", err)
	}
	if len(res.Accounts) != 5 {
		t.Fatalf("accounts = %d, want 5: %+v", len(res.Accounts), res.Accounts)
	}
	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", res.Skipped)
	}

	xc := res.Accounts[0]
	if xc.Type != account.TypeXtream || xc.Xtream.Username != "bob" {
		t.Errorf("xc entry = %+v", xc)
	}
	if xc.Category != "Imported" {
		t.Errorf("category = %q", xc.Category)
	}

	cred := res.Accounts[1]
	if cred.Type != account.TypeStalker || cred.Stalker.MACAddress != "00:1A:79:AA:BB:CC" {
		t.Errorf("stalker string entry = %+v", cred)
	}
	if cred.Stalker.PortalURL != "http://portal.example/c/" {
		t.Errorf("portal = %q", cred.Stalker.PortalURL)
	}

	// The three MACs bind to the portal URL line above them.
	for i, acc := range res.Accounts[2:] {
		if acc.Stalker.PortalURL != "http://maclist.example/c/" {
			t.Errorf("mac entry %d portal = %q", i, acc.Stalker.PortalURL)
		}
	}
}

func TestParseBulk_macWithoutPortalSkipped(t *testing.T) {
	res, err := ParseBulk(strings.NewReader("00:1A:79:11:22:33\n"), "x")
	if err != nil {
		t.Fatalf("ParseBulk: %v", err)
	}
	if len(res.Accounts) != 0 || res.Skipped != 1 {
		t.Errorf("accounts=%d skipped=%d, want 0/1", len(res.Accounts), res.Skipped)
	}
}

func TestParseBulk_xcLinkResetsPortalContext(t *testing.T) {
	input := `http://maclist.example/c/
http://xc.example/get.php?username=bob&password=pw
00:1A:79:11:22:33
`
	res, err := ParseBulk(strings.NewReader(input), "x")
	if err != nil {
		t.Fatalf("ParseBulk: %v", err)
	}
	if len(res.Accounts) != 1 {
		t.Fatalf("accounts = %d, want only the xc entry", len(res.Accounts))
	}
	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want the orphaned MAC", res.Skipped)
	}
}

func TestParseYAML(t *testing.T) {
	doc := `
entries:
  - name: main
    category: Home
    server: http://xc.example
    username: bob
    password: pw
  - type: stalker
    portal: http://portal.example/c/
    mac: 001a79aabbcc
`
	accounts, err := ParseYAML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("accounts = %d, want 2", len(accounts))
	}
	if accounts[0].Type != account.TypeXtream || accounts[0].Name != "main" {
		t.Errorf("entry 0 = %+v", accounts[0])
	}
	if accounts[1].Type != account.TypeStalker {
		t.Errorf("entry 1 type = %q", accounts[1].Type)
	}
	if accounts[1].Stalker.MACAddress != "00:1A:79:AA:BB:CC" {
		t.Errorf("mac not normalized: %q", accounts[1].Stalker.MACAddress)
	}
	if accounts[1].Name != "entry_2" {
		t.Errorf("default name = %q", accounts[1].Name)
	}
}

func TestParseYAML_missingFields(t *testing.T) {
	_, err := ParseYAML(strings.NewReader("entries:\n  - username: bob\n"))
	if err == nil {
		t.Error("xc entry without server accepted")
	}
	_, err = ParseYAML(strings.NewReader("entries:\n  - type: stalker\n    portal: http://p\n"))
	if err == nil {
		t.Error("stalker entry without mac accepted")
	}
}

func TestExportLink(t *testing.T) {
	xc := account.Account{
		Type:   account.TypeXtream,
		Xtream: account.XtreamCreds{ServerBaseURL: "http://xc.example", Username: "bob", Password: "pw"},
	}
	want := "http://xc.example/get.php?username=bob&password=pw&type=m3u_plus&output=ts"
	if got := ExportLink(xc); got != want {
		t.Errorf("xc link = %q, want %q", got, want)
	}

	st := account.Account{
		Type:    account.TypeStalker,
		Stalker: account.StalkerCreds{PortalURL: "http://portal.example/c/", MACAddress: "00:1A:79:AA:BB:CC"},
	}
	want = "stalker_portal:http://portal.example/c/,mac:00:1A:79:AA:BB:CC"
	if got := ExportLink(st); got != want {
		t.Errorf("stalker link = %q, want %q", got, want)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	st := account.Account{
		Type:    account.TypeStalker,
		Stalker: account.StalkerCreds{PortalURL: "http://portal.example/c/", MACAddress: "00:1A:79:AA:BB:CC"},
	}
	res, err := ParseBulk(strings.NewReader(ExportLink(st)+"\n"), "x")
	if err != nil {
		t.Fatalf("ParseBulk: %v", err)
	}
	if len(res.Accounts) != 1 || res.Accounts[0].Stalker != st.Stalker {
		t.Errorf("round trip = %+v", res.Accounts)
	}
}
