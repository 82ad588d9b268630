package payment

import "testing"

func TestValidTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusProcessing},
		{StatusPending, StatusCompleted},
		{StatusPending, StatusFailed},
		{StatusPending, StatusCancelled},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusFailed},
		{StatusProcessing, StatusCancelled},
		{StatusCompleted, StatusRefunded},
	}
	for _, tr := range allowed {
		if !ValidTransition(tr.from, tr.to) {
			t.Errorf("ValidTransition(%s, %s) = false, want true", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusCompleted, StatusPending},
		{StatusCompleted, StatusFailed},
		{StatusCompleted, StatusCancelled},
		{StatusFailed, StatusCompleted},
		{StatusFailed, StatusPending},
		{StatusCancelled, StatusCompleted},
		{StatusRefunded, StatusCompleted},
		{StatusPending, StatusRefunded},
		{StatusProcessing, StatusRefunded},
		{StatusPending, StatusPending},
		{StatusCompleted, StatusCompleted},
	}
	for _, tr := range denied {
		if ValidTransition(tr.from, tr.to) {
			t.Errorf("ValidTransition(%s, %s) = true, want false", tr.from, tr.to)
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	terminal := map[Status]bool{
		StatusPending:    false,
		StatusProcessing: false,
		StatusCompleted:  false,
		StatusFailed:     true,
		StatusCancelled:  true,
		StatusRefunded:   true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}

	retryable := map[Status]bool{
		StatusPending:    false,
		StatusProcessing: false,
		StatusCompleted:  false,
		StatusFailed:     true,
		StatusCancelled:  true,
		StatusRefunded:   false,
	}
	for status, want := range retryable {
		if got := status.CanRetry(); got != want {
			t.Errorf("%s.CanRetry() = %v, want %v", status, got, want)
		}
	}
}

func TestProviderForMethod(t *testing.T) {
	tests := []struct {
		method Method
		want   Provider
		ok     bool
	}{
		{MethodCreditCard, ProviderStripe, true},
		{MethodDebitCard, ProviderStripe, true},
		{MethodStripe, ProviderStripe, true},
		{MethodPayThor, ProviderPayThor, true},
		{MethodPayTR, ProviderPayTR, true},
		{Method("bitcoin"), "", false},
	}
	for _, tt := range tests {
		got, ok := ProviderForMethod(tt.method)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ProviderForMethod(%s) = (%s, %v), want (%s, %v)", tt.method, got, ok, tt.want, tt.ok)
		}
	}
}
