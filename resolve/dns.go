package resolve

import (
	"context"
	"fmt"

	"github.com/miekg/dns"
)

// DNSSRVResolver resolves a service triple via a DNS SRV lookup against a
// configured resolver server, e.g. `_instance._service._app.example.`.
// Register always returns an error: SRV-based discovery expects
// registration to happen out-of-band, in the DNS zone itself.
type DNSSRVResolver struct {
	Server string // "host:port" of the DNS resolver to query
	Zone   string // base zone, e.g. "example.internal."
	client *dns.Client
}

// NewDNSSRVResolver builds a resolver querying server for SRV records
// under zone.
func NewDNSSRVResolver(server, zone string) *DNSSRVResolver {
	return &DNSSRVResolver{Server: server, Zone: zone, client: new(dns.Client)}
}

func (r *DNSSRVResolver) srvName(svc Service) string {
	return fmt.Sprintf("_%s._%s._%s.%s", svc.Instance, svc.Service, svc.App, r.Zone)
}

func (r *DNSSRVResolver) Resolve(ctx context.Context, svc Service) (uint16, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(r.srvName(svc)), dns.TypeSRV)

	in, _, err := r.client.ExchangeContext(ctx, msg, r.Server)
	if err != nil {
		return 0, err
	}
	for _, rr := range in.Answer {
		if srv, ok := rr.(*dns.SRV); ok {
			return srv.Port, nil
		}
	}
	return 0, errNotFound{svc}
}

func (r *DNSSRVResolver) Register(_ context.Context, _ Service, _ uint16) error {
	return fmt.Errorf("resolve: DNSSRVResolver does not support dynamic registration, update the zone instead")
}
