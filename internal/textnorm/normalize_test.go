package textnorm

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trim and lower", "  How Do I LOGIN?  ", "how do i login?"},
		{"collapse whitespace", "reset \t\n my   password", "reset my password"},
		{"full-width latin", "ＥＺＨＩＳＨＩ　ｌｏｇｉｎ", "ezhishi login"},
		{"full-width punctuation", "如何登录？", "如何登录?"},
		{"empty", "   ", ""},
		{"chinese untouched", "忘记密码", "忘记密码"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"  How Do I LOGIN?  ",
		"ＥＺＨＩＳＨＩ　ｌｏｇｉｎ",
		"忘记 密码  怎么办？",
		"Mixed 中文 and ＡＳＣＩＩ\ttext",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestWordCount(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"how do i reset my password", 6},
		{"hi", 1},
		{"", 0},
		{"我忘记了密码", 6},
		{"login 登录", 2},
	}
	for _, tt := range tests {
		if got := WordCount(tt.input); got != tt.want {
			t.Errorf("WordCount(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
