package porcupine

import "testing"

// Engine behaviour against a live Porcupine instance needs an access key and
// the native library, so only the pure keyword-spec handling is covered here.

func TestLabelFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		spec string
		want string
	}{
		{"jarvis", "jarvis"},
		{"hey_siri", "hey_siri"},
		{"models/hey-hearken.ppn", "hey-hearken"},
		{"/opt/hearken/custom.ppn", "custom"},
		{`C:\models\porcupine.ppn`, "porcupine"},
	}
	for _, tc := range cases {
		if got := labelFor(tc.spec); got != tc.want {
			t.Errorf("labelFor(%q) = %q, want %q", tc.spec, got, tc.want)
		}
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, err := New("", []string{"jarvis"}); err == nil {
		t.Error("New with empty access key returned nil error")
	}
	if _, err := New("key", nil); err == nil {
		t.Error("New with no keywords returned nil error")
	}
	if _, err := New("key", []string{"jarvis"}, WithSensitivities([]float32{0.5, 0.5})); err == nil {
		t.Error("New with mismatched sensitivities returned nil error")
	}
	if _, err := New("key", []string{"jarvis", "models/custom.ppn"}); err == nil {
		t.Error("New mixing built-ins and keyword files returned nil error")
	}
}
