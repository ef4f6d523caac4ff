package models

import (
	"errors"
	"testing"
	"time"
)

func TestUserRole_IsValid(t *testing.T) {
	tests := []struct {
		role  UserRole
		valid bool
	}{
		{RoleUser, true},
		{RoleAdmin, true},
		{"invalid", false},
		{"", false},
		{"USER", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := tt.role.IsValid(); got != tt.valid {
				t.Errorf("UserRole(%q).IsValid() = %v, want %v", tt.role, got, tt.valid)
			}
		})
	}
}

func TestUser_Validate(t *testing.T) {
	tests := []struct {
		name    string
		user    User
		wantErr bool
	}{
		{"valid", User{Username: "alice", Role: "user"}, false},
		{"default role", User{Username: "alice"}, false},
		{"empty username", User{}, true},
		{"slash in username", User{Username: "a/b"}, true},
		{"dot dot", User{Username: ".."}, true},
		{"wildcard", User{Username: "*"}, true},
		{"padded", User{Username: " alice"}, true},
		{"bad role", User{Username: "alice", Role: "root"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("Validate() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestUser_GetGroupNames(t *testing.T) {
	user := User{Username: "alice", Groups: []Group{{Name: "eng"}, {Name: "ops"}}}
	names := user.GetGroupNames()
	if len(names) != 2 || names[0] != "eng" || names[1] != "ops" {
		t.Errorf("GetGroupNames() = %v", names)
	}
}

func TestPermissionKind_Covers(t *testing.T) {
	tests := []struct {
		grant    PermissionKind
		required PermissionKind
		want     bool
	}{
		{KindRead, KindRead, true},
		{KindRead, KindWrite, false},
		{KindWrite, KindRead, true},
		{KindWrite, KindDelete, false},
		{KindDelete, KindWrite, true},
		{KindDelete, KindRead, true},
		{"bogus", KindRead, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.grant)+"-"+string(tt.required), func(t *testing.T) {
			if got := tt.grant.Covers(tt.required); got != tt.want {
				t.Errorf("%q.Covers(%q) = %v, want %v", tt.grant, tt.required, got, tt.want)
			}
		})
	}
}

func TestParsePermissionKind(t *testing.T) {
	if k, err := ParsePermissionKind(" Write "); err != nil || k != KindWrite {
		t.Errorf("ParsePermissionKind() = %q, %v", k, err)
	}
	if _, err := ParsePermissionKind("admin"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestPermission_Validate(t *testing.T) {
	tests := []struct {
		name    string
		perm    Permission
		wantErr bool
	}{
		{"user grant", Permission{ZoneID: "z", Path: "/team", Kind: KindRead, Username: "alice"}, false},
		{"group grant", Permission{ZoneID: "z", Path: "/", Kind: KindDelete, GroupName: "eng"}, false},
		{"both subjects", Permission{ZoneID: "z", Path: "/", Kind: KindRead, Username: "a", GroupName: "g"}, true},
		{"no subject", Permission{ZoneID: "z", Path: "/", Kind: KindRead}, true},
		{"relative path", Permission{ZoneID: "z", Path: "team", Kind: KindRead, Username: "a"}, true},
		{"bad kind", Permission{ZoneID: "z", Path: "/", Kind: "all", Username: "a"}, true},
		{"no zone", Permission{Path: "/", Kind: KindRead, Username: "a"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.perm.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPermission_ExpiredAt(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	if (&Permission{}).ExpiredAt(now) {
		t.Error("grant without expiry must not expire")
	}
	if !(&Permission{ExpiresAt: &past}).ExpiredAt(now) {
		t.Error("grant in the past must be expired")
	}
	if (&Permission{ExpiresAt: &future}).ExpiredAt(now) {
		t.Error("grant in the future must not be expired")
	}
	if got := (&Permission{GroupName: "eng"}).Subject(); got != "group:eng" {
		t.Errorf("Subject() = %q", got)
	}
}

func TestStoragePool_Validate(t *testing.T) {
	tests := []struct {
		name    string
		pool    StoragePool
		wantErr bool
	}{
		{"valid", StoragePool{Name: "data", Path: "/srv/data"}, false},
		{"relative path", StoragePool{Name: "data", Path: "srv/data"}, true},
		{"no name", StoragePool{Path: "/srv/data"}, true},
		{"negative quota", StoragePool{Name: "data", Path: "/srv", DefaultUserQuota: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.pool.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStoragePool_ExtensionAllowed(t *testing.T) {
	pool := StoragePool{
		AllowedTypes: StringList{".PDF", "txt", ""},
		DeniedTypes:  StringList{"exe"},
	}
	pool.Normalize()

	tests := []struct {
		file string
		want bool
	}{
		{"report.pdf", true},
		{"REPORT.PDF", true},
		{"notes.txt", true},
		{"image.png", false},
		{"setup.exe", false},
		{"README", false},
	}
	for _, tt := range tests {
		if got := pool.ExtensionAllowed(tt.file); got != tt.want {
			t.Errorf("ExtensionAllowed(%q) = %v, want %v", tt.file, got, tt.want)
		}
	}

	open := StoragePool{DeniedTypes: StringList{"exe"}}
	if !open.ExtensionAllowed("README") {
		t.Error("empty allow list must allow files without extension")
	}
}

func TestStoragePool_AvailableSpace(t *testing.T) {
	pool := StoragePool{TotalSpace: 100, FreeSpace: 30, ReservedSpace: 10}
	if got := pool.AvailableSpace(); got != 20 {
		t.Errorf("AvailableSpace() = %d, want 20", got)
	}
	pool.ReservedSpace = 50
	if got := pool.AvailableSpace(); got != 0 {
		t.Errorf("AvailableSpace() = %d, want 0", got)
	}
}

func TestShareZone_Normalize(t *testing.T) {
	zone := ShareZone{
		Path:         "/users/./home/",
		AllowedUsers: StringList{" alice ", "alice", ""},
	}
	zone.Normalize()

	if zone.Path != "users/home" {
		t.Errorf("Path = %q, want users/home", zone.Path)
	}
	if zone.ZoneType != ZoneTypeGroup {
		t.Errorf("ZoneType = %q, want group", zone.ZoneType)
	}
	if len(zone.AllowedUsers) != 1 || zone.AllowedUsers[0] != "alice" {
		t.Errorf("AllowedUsers = %v", zone.AllowedUsers)
	}
}

func TestShareZone_Validate(t *testing.T) {
	tests := []struct {
		name    string
		zone    ShareZone
		wantErr bool
	}{
		{"valid", ShareZone{Name: "users", PoolID: "p", ZoneType: ZoneTypePersonal}, false},
		{"no pool", ShareZone{Name: "users", ZoneType: ZoneTypePublic}, true},
		{"bad type", ShareZone{Name: "users", PoolID: "p", ZoneType: "shared"}, true},
		{"nul path", ShareZone{Name: "users", PoolID: "p", ZoneType: ZoneTypeGroup, Path: "a\x00b"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.zone.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOptionBlocks_ValueScan(t *testing.T) {
	in := WebOptions{Enabled: true, MaxLinkExpiry: 7, AllowDownload: true}
	v, err := in.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}

	var out WebOptions
	if err := out.Scan(v); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if out != in {
		t.Errorf("Scan() = %+v, want %+v", out, in)
	}
	if got := out.MaxExpiry(); got != 7*24*time.Hour {
		t.Errorf("MaxExpiry() = %v", got)
	}

	var empty SMBOptions
	if err := empty.Scan(nil); err != nil || empty.Enabled {
		t.Errorf("Scan(nil) = %+v, %v", empty, err)
	}
	if err := empty.Scan(42); err == nil {
		t.Error("Scan(int) should fail")
	}
}

func TestStringList_Value(t *testing.T) {
	v, err := StringList(nil).Value()
	if err != nil || v != "[]" {
		t.Errorf("nil Value() = %v, %v", v, err)
	}

	var l StringList
	if err := l.Scan([]byte(`["a","b"]`)); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if !l.Contains("b") || l.Contains("c") || !l.ContainsAny([]string{"x", "a"}) {
		t.Errorf("unexpected membership for %v", l)
	}
}

func TestShareLink_StateAt(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		link ShareLink
		want LinkState
	}{
		{"active", ShareLink{Enabled: true}, LinkActive},
		{"unlimited counters", ShareLink{Enabled: true, DownloadCount: 1000}, LinkActive},
		{"future expiry", ShareLink{Enabled: true, ExpiresAt: &future}, LinkActive},
		{"expired", ShareLink{Enabled: true, ExpiresAt: &past}, LinkExpired},
		{"expired wins over disabled", ShareLink{ExpiresAt: &past}, LinkExpired},
		{"disabled", ShareLink{}, LinkDisabled},
		{"downloads exhausted", ShareLink{Enabled: true, MaxDownloads: 1, DownloadCount: 1}, LinkLimitReached},
		{"views exhausted", ShareLink{Enabled: true, MaxViews: 2, ViewCount: 2}, LinkLimitReached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.link.StateAt(now); got != tt.want {
				t.Errorf("StateAt() = %q, want %q", got, tt.want)
			}
			if got := tt.link.AccessibleAt(now); got != (tt.want == LinkActive) {
				t.Errorf("AccessibleAt() = %v", got)
			}
		})
	}
}

func TestLinkCapabilities(t *testing.T) {
	caps := LinkCapabilities{AllowDownload: true, AllowListing: true}
	if !caps.Has(CapDownload) || caps.Has(CapUpload) || caps.Has("delete") {
		t.Errorf("unexpected Has() results for %+v", caps)
	}

	bound := caps.Intersect(LinkCapabilities{AllowDownload: true, AllowUpload: true})
	if !bound.AllowDownload || bound.AllowListing || bound.AllowUpload {
		t.Errorf("Intersect() = %+v", bound)
	}

	if _, err := ParseCapability("preview"); err != nil {
		t.Errorf("ParseCapability(preview) error = %v", err)
	}
	if _, err := ParseCapability("delete"); err == nil {
		t.Error("ParseCapability(delete) should fail")
	}
}

func TestPasswordHashing(t *testing.T) {
	if err := ValidatePassword("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("ValidatePassword(short) = %v", err)
	}

	hash, err := HashPasswordWithCost("correct horse", 4)
	if err != nil {
		t.Fatalf("HashPasswordWithCost() error = %v", err)
	}
	if !VerifyPassword("correct horse", hash) || VerifyPassword("wrong horse", hash) {
		t.Error("VerifyPassword() mismatch")
	}
	if !NeedsRehash(hash) {
		t.Error("cost 4 hash should need rehash")
	}

	hasher := BcryptHasher{Cost: 4}
	linkHash, err := hasher.Hash("pw")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !hasher.Verify("pw", linkHash) || hasher.Verify("px", linkHash) {
		t.Error("BcryptHasher.Verify() mismatch")
	}
	if _, err := hasher.Hash(""); !errors.Is(err, ErrPasswordEmpty) {
		t.Errorf("Hash(\"\") = %v", err)
	}
}

func TestGroup_Validate(t *testing.T) {
	g := Group{Name: "  eng "}
	if err := g.Validate(); err != nil || g.Name != "eng" {
		t.Fatalf("Validate() = %v, name %q", err, g.Name)
	}
	for _, name := range []string{"", WildcardSubject, "a,b"} {
		g := Group{Name: name}
		if err := g.Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("Validate(%q) = %v, want ErrValidation", name, err)
		}
	}

	g.Users = []User{{Username: "alice"}, {Username: "bob"}}
	if got := g.MemberNames(); len(got) != 2 || got[1] != "bob" {
		t.Errorf("MemberNames() = %v", got)
	}
}
