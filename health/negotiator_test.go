package health

import (
	"errors"
	"net"
	"os"
	"reflect"
	"syscall"
	"testing"
)

type fakeListener struct {
	addr net.Addr
}

func (l *fakeListener) Accept() (net.Conn, error) { return nil, net.ErrClosed }
func (l *fakeListener) Close() error              { return nil }
func (l *fakeListener) Addr() net.Addr            { return l.addr }

func addrInUse(addr string) error {
	return &net.OpError{
		Op:  "listen",
		Net: "tcp",
		Err: &os.SyscallError{Syscall: "bind", Err: syscall.EADDRINUSE},
	}
}

// fakeNet fails with EADDRINUSE for busy ports and records every attempt.
type fakeNet struct {
	busy     map[string]bool
	fail     map[string]error
	attempts []string
}

func (f *fakeNet) listen(_ string, addr string) (net.Listener, error) {
	f.attempts = append(f.attempts, addr)
	if err, ok := f.fail[addr]; ok {
		return nil, err
	}
	if f.busy[addr] {
		return nil, addrInUse(addr)
	}
	return &fakeListener{addr: &net.TCPAddr{IP: net.IPv4zero}}, nil
}

func TestCandidates(t *testing.T) {
	tests := []struct {
		name      string
		preferred int
		want      []int
	}{
		{name: "default", preferred: 5000, want: []int{5000, 5001, 5002, 8000, 8080, 3000}},
		{name: "overlap with fallback", preferred: 7999, want: []int{7999, 8000, 8001, 8080, 3000}},
		{name: "preferred is a fallback", preferred: 8080, want: []int{8080, 8081, 8082, 8000, 3000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Candidates(tt.preferred); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Candidates(%d) = %v, want %v", tt.preferred, got, tt.want)
			}
		})
	}
}

func TestBind(t *testing.T) {
	tests := []struct {
		name         string
		busy         []string
		fail         map[string]error
		wantPort     int
		wantErr      error
		wantAnyErr   bool
		wantAttempts []string
	}{
		{
			name:         "preferred free",
			wantPort:     5000,
			wantAttempts: []string{"0.0.0.0:5000"},
		},
		{
			name:     "contention advances to 8080",
			busy:     []string{"0.0.0.0:5000", "0.0.0.0:5001", "0.0.0.0:5002", "0.0.0.0:8000"},
			wantPort: 8080,
			wantAttempts: []string{
				"0.0.0.0:5000", "0.0.0.0:5001", "0.0.0.0:5002", "0.0.0.0:8000", "0.0.0.0:8080",
			},
		},
		{
			name: "all busy",
			busy: []string{
				"0.0.0.0:5000", "0.0.0.0:5001", "0.0.0.0:5002", "0.0.0.0:8000", "0.0.0.0:8080", "0.0.0.0:3000",
			},
			wantErr: ErrNoAvailablePort,
			wantAttempts: []string{
				"0.0.0.0:5000", "0.0.0.0:5001", "0.0.0.0:5002", "0.0.0.0:8000", "0.0.0.0:8080", "0.0.0.0:3000",
			},
		},
		{
			name:         "other error aborts",
			busy:         []string{"0.0.0.0:5000"},
			fail:         map[string]error{"0.0.0.0:5001": errors.New("permission denied")},
			wantAnyErr:   true,
			wantAttempts: []string{"0.0.0.0:5000", "0.0.0.0:5001"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := &fakeNet{busy: map[string]bool{}, fail: tt.fail}
			for _, b := range tt.busy {
				fn.busy[b] = true
			}
			n := NewNegotiator(NegotiatorParams{Host: "0.0.0.0", Listen: fn.listen})

			ln, port, err := n.Bind(Candidates(5000))

			if !reflect.DeepEqual(fn.attempts, tt.wantAttempts) {
				t.Errorf("attempts = %v, want %v", fn.attempts, tt.wantAttempts)
			}
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Bind() error = %v, want %v", err, tt.wantErr)
				}
				if ln != nil {
					t.Fatal("Bind() returned a listener on failure")
				}
			case tt.wantAnyErr:
				if err == nil || errors.Is(err, ErrNoAvailablePort) {
					t.Fatalf("Bind() error = %v, want bind error", err)
				}
			default:
				if err != nil {
					t.Fatalf("Bind() error = %v", err)
				}
				if port != tt.wantPort {
					t.Errorf("Bind() port = %d, want %d", port, tt.wantPort)
				}
			}
		})
	}
}

func TestBind_RealSocketContention(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("occupy port: %v", err)
	}
	defer occupied.Close()
	busyPort := occupied.Addr().(*net.TCPAddr).Port

	n := NewNegotiator(NegotiatorParams{Host: "127.0.0.1"})
	ln, port, err := n.Bind([]int{busyPort, 0})
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	defer ln.Close()

	if port != 0 {
		t.Errorf("Bind() port = %d, want the second candidate", port)
	}
}

func TestIsAddrInUse(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "syscall error", err: addrInUse(""), want: true},
		{name: "message only", err: errors.New("bind: address already in use"), want: true},
		{name: "other", err: errors.New("permission denied"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isAddrInUse(tt.err); got != tt.want {
				t.Errorf("isAddrInUse(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
