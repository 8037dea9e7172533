package trace

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "AddsNumbers", "AddsNumbers"},
		{"spaces", "adds two numbers", "adds_two_numbers"},
		{"slashes", "weird: name/v1", "weird_name_v1"},
		{"windows hostile", `a<b>c:d"e|f?g*h`, "a_b_c_d_e_f_g_h"},
		{"dots collapse", "v1.2.3", "v1_2_3"},
		{"runs collapse", "a   b", "a_b"},
		{"backslash", `dir\name`, "dir_name"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeName(tc.in))
		})
	}
}

func TestStepDir(t *testing.T) {
	got := StepDir("/tmp/proj", "Math/Addition", "adds two numbers")
	want := filepath.Join("/tmp/proj", TraceRoot, "Math", "Addition", "adds_two_numbers")
	assert.Equal(t, want, got)
}

func TestStepDir_DefaultTest(t *testing.T) {
	got := StepDir(".", "DefaultSuite", DefaultTest)
	assert.Equal(t, filepath.Join(".", TraceRoot, "DefaultSuite", "UnknownTest"), got)
}
