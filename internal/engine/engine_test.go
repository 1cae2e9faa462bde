package engine

import (
	"testing"

	"github.com/raaihank/pii-sentinel/internal/config"
	"github.com/raaihank/pii-sentinel/internal/logger"
)

func newTestEngine(t *testing.T, detectors ...string) *Engine {
	t.Helper()
	if len(detectors) == 0 {
		detectors = []string{"all"}
	}
	eng, err := New(config.PrivacyConfig{Enabled: true, Detectors: detectors}, logger.Nop())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func TestClassifyStandalone(t *testing.T) {
	eng := newTestEngine(t)

	t.Run("PhoneWithSingleQuasi", func(t *testing.T) {
		result := eng.Classify(Record{"phone": "9876543210", "name": "John"})
		if !result.IsPII {
			t.Error("Record with matching phone not flagged as PII")
		}
		if result.Redacted["phone"] != "98XXXXXX10" {
			t.Errorf("Unexpected phone mask: %v", result.Redacted["phone"])
		}
		// Only one quasi-identifier key is present, so name stays untouched.
		if result.Redacted["name"] != "John" {
			t.Errorf("Name should be untouched, got %v", result.Redacted["name"])
		}
	})

	t.Run("Aadhar", func(t *testing.T) {
		result := eng.Classify(Record{"aadhar": "123456789012"})
		if !result.IsPII {
			t.Error("Record with matching aadhar not flagged as PII")
		}
		if result.Redacted["aadhar"] != "1234XXXX9012" {
			t.Errorf("Unexpected aadhar mask: %v", result.Redacted["aadhar"])
		}
	})

	t.Run("Passport", func(t *testing.T) {
		result := eng.Classify(Record{"passport": "A1234567"})
		if !result.IsPII {
			t.Error("Record with matching passport not flagged as PII")
		}
		if result.Redacted["passport"] != "AXXXXXXX" {
			t.Errorf("Unexpected passport mask: %v", result.Redacted["passport"])
		}
	})

	t.Run("UPIHandle", func(t *testing.T) {
		result := eng.Classify(Record{"upi_id": "johndoe@upi"})
		if !result.IsPII {
			t.Error("Record with UPI handle not flagged as PII")
		}
		if result.Redacted["upi_id"] != "joXXX@upi" {
			t.Errorf("Unexpected UPI mask: %v", result.Redacted["upi_id"])
		}
	})

	t.Run("NonMatchingValueLeftUntouched", func(t *testing.T) {
		result := eng.Classify(Record{"phone": "not-a-number"})
		if result.IsPII {
			t.Error("Non-matching phone value flagged as PII")
		}
		if result.Redacted["phone"] != "not-a-number" {
			t.Errorf("Non-matching phone value was modified: %v", result.Redacted["phone"])
		}
	})

	t.Run("StandaloneKeyWithNonStringValue", func(t *testing.T) {
		result := eng.Classify(Record{"phone": float64(9876543210)})
		if result.IsPII {
			t.Error("Non-string phone value flagged as PII")
		}
	})
}

func TestClassifyCombinatorial(t *testing.T) {
	eng := newTestEngine(t)

	t.Run("NameAndEmail", func(t *testing.T) {
		result := eng.Classify(Record{"name": "John Doe", "email": "john@x.com"})
		if !result.IsPII {
			t.Error("Two quasi-identifiers not flagged as PII")
		}
		if result.Redacted["name"] != "JXXX DXXX" {
			t.Errorf("Unexpected name mask: %v", result.Redacted["name"])
		}
		if result.Redacted["email"] != "joXXX@x.com" {
			t.Errorf("Unexpected email mask: %v", result.Redacted["email"])
		}
	})

	t.Run("SingleQuasiUnchanged", func(t *testing.T) {
		result := eng.Classify(Record{"name": "John Doe", "city": "Pune"})
		if result.IsPII {
			t.Error("Single quasi-identifier flagged as PII")
		}
		if result.Redacted["name"] != "John Doe" {
			t.Errorf("Name should be untouched, got %v", result.Redacted["name"])
		}
	})

	t.Run("WholesaleMarkers", func(t *testing.T) {
		result := eng.Classify(Record{
			"address":    "42 Some Street",
			"device_id":  "dev-123",
			"ip_address": "10.0.0.1",
		})
		if !result.IsPII {
			t.Error("Three quasi-identifiers not flagged as PII")
		}
		if result.Redacted["address"] != "[REDACTED_ADDRESS]" {
			t.Errorf("Unexpected address marker: %v", result.Redacted["address"])
		}
		if result.Redacted["device_id"] != "[REDACTED_DEVICE_ID]" {
			t.Errorf("Unexpected device_id marker: %v", result.Redacted["device_id"])
		}
		if result.Redacted["ip_address"] != "[REDACTED_IP]" {
			t.Errorf("Unexpected ip_address marker: %v", result.Redacted["ip_address"])
		}
	})

	t.Run("KeyPresenceCountsRegardlessOfValueType", func(t *testing.T) {
		result := eng.Classify(Record{"name": nil, "email": float64(7)})
		if !result.IsPII {
			t.Error("Quasi-identifier keys with non-string values not counted")
		}
		if result.Redacted["name"] != "[REDACTED_NAME]" {
			t.Errorf("Unexpected non-string name mask: %v", result.Redacted["name"])
		}
		if result.Redacted["email"] != "[REDACTED_EMAIL]" {
			t.Errorf("Unexpected non-string email mask: %v", result.Redacted["email"])
		}
	})

	t.Run("ExactlyTwoQuasiMasksOnlyThose", func(t *testing.T) {
		result := eng.Classify(Record{"name": "Jane Roe", "email": "jane@x.com", "city": "Pune"})
		if result.Redacted["city"] != "Pune" {
			t.Errorf("Unrelated field modified: %v", result.Redacted["city"])
		}
	})

	t.Run("RemaskingIsStable", func(t *testing.T) {
		first := eng.Classify(Record{"name": "John Doe", "email": "john@x.com"})
		second := eng.Classify(first.Redacted)
		if second.Redacted["name"] != "JXXX DXXX" {
			t.Errorf("Re-masked name drifted: %v", second.Redacted["name"])
		}
		if second.Redacted["email"] != "joXXX@x.com" {
			t.Errorf("Re-masked email drifted: %v", second.Redacted["email"])
		}
	})
}

func TestClassifyCleanRecord(t *testing.T) {
	eng := newTestEngine(t)

	result := eng.Classify(Record{"city": "Pune"})
	if result.IsPII {
		t.Error("Clean record flagged as PII")
	}
	if result.Redacted["city"] != "Pune" {
		t.Errorf("Clean record was modified: %v", result.Redacted["city"])
	}
	if len(result.Findings) != 0 {
		t.Errorf("Clean record produced findings: %v", result.Findings)
	}
}

func TestClassifyDoesNotMutateInput(t *testing.T) {
	eng := newTestEngine(t)

	record := Record{"phone": "9876543210", "name": "John Doe", "email": "john@x.com"}
	eng.Classify(record)

	if record["phone"] != "9876543210" {
		t.Errorf("Input phone mutated: %v", record["phone"])
	}
	if record["name"] != "John Doe" {
		t.Errorf("Input name mutated: %v", record["name"])
	}
	if record["email"] != "john@x.com" {
		t.Errorf("Input email mutated: %v", record["email"])
	}
}

func TestClassifyFindings(t *testing.T) {
	eng := newTestEngine(t)

	result := eng.Classify(Record{"phone": "9876543210", "name": "John Doe", "email": "john@x.com"})
	if len(result.Findings) != 3 {
		t.Fatalf("Expected 3 findings, got %d: %v", len(result.Findings), result.Findings)
	}

	rules := make(map[string]string)
	for _, f := range result.Findings {
		rules[f.Field] = f.Rule
	}
	if rules["phone"] != RuleStandalone {
		t.Errorf("Expected standalone finding for phone, got %q", rules["phone"])
	}
	if rules["name"] != RuleCombinatorial || rules["email"] != RuleCombinatorial {
		t.Errorf("Expected combinatorial findings for name and email, got %v", rules)
	}
}

func TestDetectorConfiguration(t *testing.T) {
	t.Run("UnknownDetector", func(t *testing.T) {
		_, err := New(config.PrivacyConfig{Enabled: true, Detectors: []string{"ssn"}}, logger.Nop())
		if err == nil {
			t.Error("Expected error for unknown detector")
		}
	})

	t.Run("SubsetOfDetectors", func(t *testing.T) {
		eng := newTestEngine(t, "phone")
		result := eng.Classify(Record{"aadhar": "123456789012"})
		if result.IsPII {
			t.Error("Disabled aadhar detector still fired")
		}
		result = eng.Classify(Record{"phone": "9876543210"})
		if !result.IsPII {
			t.Error("Enabled phone detector did not fire")
		}
	})

	t.Run("DisabledEngine", func(t *testing.T) {
		eng, err := New(config.PrivacyConfig{Enabled: false, Detectors: []string{"all"}}, logger.Nop())
		if err != nil {
			t.Fatalf("Failed to create engine: %v", err)
		}
		result := eng.Classify(Record{"phone": "9876543210", "name": "J", "email": "a@b.com"})
		if result.IsPII {
			t.Error("Disabled engine flagged a record")
		}
		if result.Redacted["phone"] != "9876543210" {
			t.Errorf("Disabled engine modified a record: %v", result.Redacted["phone"])
		}
	})
}
