package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreEmptyBodyIsZero(t *testing.T) {
	t.Parallel()

	res := Score("rundll32.exe hklm lsass.exe", "", "")
	assert.Equal(t, 0.0, res.Score)
	assert.Empty(t, res.Perfect)
	assert.NotNil(t, res.Perfect)
}

func TestScoreNoMatchesIsZero(t *testing.T) {
	t.Parallel()

	res := Score("Quarterly earnings", "", "Quarterly results were good, said the company.")
	assert.Equal(t, 0.0, res.Score)
	assert.Empty(t, res.Perfect)
	assert.Empty(t, res.Good)
	assert.Empty(t, res.LOLBAS)
	assert.Empty(t, res.Intelligence)
	assert.Empty(t, res.Negative)
}

func TestScoreSinglePerfectMatch(t *testing.T) {
	t.Parallel()

	res := Score("", "", "HKLM")
	assert.Equal(t, 37.5, res.Score)
	assert.Equal(t, []string{"hklm"}, res.Perfect)
}

func TestScoreRoundsHalfToEven(t *testing.T) {
	t.Parallel()

	res := Score("", "", "hklm appdata")
	require.Len(t, res.Perfect, 2)
	assert.Equal(t, 56.2, res.Score)
}

func TestScoreNegativePenalty(t *testing.T) {
	t.Parallel()

	res := Score("", "", "hklm tutorial")
	assert.Equal(t, []string{"tutorial"}, res.Negative)
	assert.Equal(t, 32.5, res.Score)
}

func TestScoreClampsAtZero(t *testing.T) {
	t.Parallel()

	res := Score("", "", "tutorial webinar")
	assert.Len(t, res.Negative, 2)
	assert.Equal(t, 0.0, res.Score)
}

func TestScoreMonotonicInPerfectMatches(t *testing.T) {
	t.Parallel()

	keywords := []string{"hklm", "appdata", "programdata", "comspec", "wbem", "FromBase64String", "MemoryStream", "DownloadString"}
	prev := -1.0
	for i := 1; i <= len(keywords); i++ {
		res := Score("", "", strings.Join(keywords[:i], " "))
		require.Len(t, res.Perfect, i)
		assert.GreaterOrEqual(t, res.Score, prev)
		prev = res.Score
	}
}

func TestScoreNeverReachesHundred(t *testing.T) {
	t.Parallel()

	var all []string
	all = append(all, perfectDiscriminators...)
	all = append(all, goodDiscriminators...)
	all = append(all, lolbasExecutables...)
	all = append(all, intelligenceIndicators...)

	res := Score("everything", "", strings.Join(all, " \n "))
	assert.Empty(t, res.Negative)
	assert.LessOrEqual(t, res.Score, ScoreCap)
	assert.Greater(t, res.Score, 90.0)
}

func TestScoreDuplicateKeywordsCountOnce(t *testing.T) {
	t.Parallel()

	res := Score("", "", "msiexec.exe")
	count := 0
	for _, kw := range res.Perfect {
		if kw == "msiexec.exe" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestKeywordMatchingModes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		keyword string
		text    string
		want    bool
	}{
		{"short exe bare", "cmd.exe", "ran cmd /c whoami", true},
		{"short exe extension", "cmd.exe", "spawned cmd.exe", true},
		{"short exe inside word", "cmd.exe", "a cmdlet was used", false},
		{"long exe requires extension", "services.exe", "cloud services are popular", false},
		{"long exe with extension", "services.exe", "parent was services.exe", true},
		{"long dll extension optional", "shell32.dll", "loaded shell32 today", true},
		{"short dll inside word", "url.dll", "many urls", false},
		{"short dll with extension", "url.dll", "rundll32 url.dll,openurl", true},
		{"bare extension", ".exe", "hello world", false},
		{"bare extension present", ".exe", "dropped payload.exe", true},
		{"leading hyphen", "-EncodedCommand", "powershell -encodedcommand abc", true},
		{"leading hyphen letter before", "-EncodedCommand", "x-encodedcommandy", false},
		{"partial", "Hunting", "threathunting queries", true},
		{"wildcard", "spawn", "the process spawned children", true},
		{"symbol path", `C:\`, `c:\users\public`, true},
		{"symbol pipe", "|", "a|b", true},
		{"word boundary", "APT", "apt29 activity", false},
		{"word boundary hit", "APT", "an apt group", true},
		{"word boundary inside word", "iex", "a niexus", false},
		{"multi word", "lateral movement", "signs of lateral movement here", true},
		{"regex substring", `%[A-Za-z0-9_]+:~[0-9]+(,[0-9]+)?%`, "%comspec:~0,1%", true},
		{"regex delayed expansion", `![A-Za-z0-9_]+!`, "echo !var!", true},
		{"regex caret set", `[^\w](s\^+e\^*t|s\^*e\^+t)[^\w]`, "cmd /c s^e^t x=1", true},
		{"caret quote literal", `\^|"`, `he said "hi" ^`, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Matches(tc.keyword, strings.ToLower(tc.text)))
		})
	}
}

func TestScoreReportsEvidenceInTableOrder(t *testing.T) {
	t.Parallel()

	res := Score("", "", "appdata then hklm")
	assert.Equal(t, []string{"hklm", "appdata"}, res.Perfect)
}
