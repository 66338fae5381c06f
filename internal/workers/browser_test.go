package workers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchSiteSignature_CaseInsensitiveSubstring(t *testing.T) {
	d, ok := matchSiteSignature("reddit.com/r/golang - Reddit")
	assert.True(t, ok)
	assert.Equal(t, "reddit.com", d)
}

func TestMatchSiteSignature_LongerSignaturePrefersMoreSpecificDomain(t *testing.T) {
	d, ok := matchSiteSignature("Never Gonna Give You Up - YouTube Music")
	assert.True(t, ok)
	assert.Equal(t, "music.youtube.com", d)
}

func TestMatchSiteSignature_NoMatch(t *testing.T) {
	_, ok := matchSiteSignature("some unrelated window title")
	assert.False(t, ok)
}

func TestRegistrableDomain_CollapsesToTwoLabelsByDefault(t *testing.T) {
	assert.Equal(t, "example.com", registrableDomain("www.example.com"))
	assert.Equal(t, "example.com", registrableDomain("a.b.example.com"))
}

func TestRegistrableDomain_KeepsMusicYouTubeDistinctFromYouTube(t *testing.T) {
	assert.Equal(t, "music.youtube.com", registrableDomain("music.youtube.com"))
	assert.Equal(t, "youtube.com", registrableDomain("www.youtube.com"))
}

func TestRegistrableDomain_HandlesMultiPartPublicSuffixes(t *testing.T) {
	assert.Equal(t, "bbc.co.uk", registrableDomain("www.bbc.co.uk"))
	assert.Equal(t, "co.uk", registrableDomain("co.uk"))
}

func TestRegistrableDomain_TrimsTrailingDotAndLowercases(t *testing.T) {
	assert.Equal(t, "example.com", registrableDomain("WWW.Example.COM."))
}

func TestExeBasename_RequiresExeSuffix(t *testing.T) {
	assert.Equal(t, "game.exe", exeBasename(`C:\Games\MyGame\game.exe`))
	assert.Equal(t, "", exeBasename(`/usr/bin/steam`))
}

func TestExeBasename_NormalizesBackslashes(t *testing.T) {
	assert.Equal(t, "Launcher.exe", exeBasename(`Z:\steamapps\common\Title\Launcher.exe`))
}
