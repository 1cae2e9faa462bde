package engine

import "testing"

func TestMaskClamping(t *testing.T) {
	t.Run("PhoneShorterThanSliceWidth", func(t *testing.T) {
		if got := maskPhone("12"); got != "12XXXXXX12" {
			t.Errorf("maskPhone(\"12\") = %q", got)
		}
		if got := maskPhone(""); got != "XXXXXX" {
			t.Errorf("maskPhone(\"\") = %q", got)
		}
	})

	t.Run("AadharShorterThanSliceWidth", func(t *testing.T) {
		if got := maskAadhar("123"); got != "123XXXX123" {
			t.Errorf("maskAadhar(\"123\") = %q", got)
		}
	})

	t.Run("PassportDropsEverythingAfterFirstChar", func(t *testing.T) {
		if got := maskPassport("A1234567"); got != "AXXXXXXX" {
			t.Errorf("maskPassport(\"A1234567\") = %q", got)
		}
		if got := maskPassport("Z99999999999"); got != "ZXXXXXXX" {
			t.Errorf("maskPassport long input = %q", got)
		}
		if got := maskPassport(""); got != "XXXXXXX" {
			t.Errorf("maskPassport(\"\") = %q", got)
		}
	})
}

func TestMaskUPI(t *testing.T) {
	t.Run("Handle", func(t *testing.T) {
		if got := maskUPI("johndoe@upi"); got != "joXXX@upi" {
			t.Errorf("maskUPI = %q", got)
		}
	})

	t.Run("ShortLocalPart", func(t *testing.T) {
		if got := maskUPI("j@upi"); got != "jXXX@upi" {
			t.Errorf("maskUPI short local = %q", got)
		}
	})

	t.Run("NoAtSign", func(t *testing.T) {
		if got := maskUPI("no-handle"); got != "XXX@XXX" {
			t.Errorf("maskUPI without @ = %q", got)
		}
	})

	t.Run("MultipleAtSigns", func(t *testing.T) {
		// Split keeps only the segment between the first two separators.
		if got := maskUPI("ab@mid@tail"); got != "abXXX@mid" {
			t.Errorf("maskUPI multiple @ = %q", got)
		}
	})
}

func TestMaskName(t *testing.T) {
	t.Run("TwoParts", func(t *testing.T) {
		if got := maskName("John Doe"); got != "JXXX DXXX" {
			t.Errorf("maskName = %q", got)
		}
	})

	t.Run("ThreeParts", func(t *testing.T) {
		if got := maskName("John Q Public"); got != "JXXX PXXX" {
			t.Errorf("maskName three parts = %q", got)
		}
	})

	t.Run("SinglePart", func(t *testing.T) {
		if got := maskName("John"); got != "JXXX" {
			t.Errorf("maskName single part = %q", got)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if got := maskName(""); got != "XXX" {
			t.Errorf("maskName(\"\") = %q", got)
		}
	})
}

func TestMaskEmail(t *testing.T) {
	t.Run("Regular", func(t *testing.T) {
		if got := maskEmail("john@x.com"); got != "joXXX@x.com" {
			t.Errorf("maskEmail = %q", got)
		}
	})

	t.Run("ShortLocalPart", func(t *testing.T) {
		if got := maskEmail("j@x.com"); got != "jXXX@x.com" {
			t.Errorf("maskEmail short local = %q", got)
		}
	})

	t.Run("EmptyLocalPart", func(t *testing.T) {
		if got := maskEmail("@x.com"); got != "XXX@x.com" {
			t.Errorf("maskEmail empty local = %q", got)
		}
	})

	t.Run("NoAtSign", func(t *testing.T) {
		if got := maskEmail("nodomain"); got != "noXXX@" {
			t.Errorf("maskEmail without @ = %q", got)
		}
	})
}
