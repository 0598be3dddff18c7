package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"incidentcore/internal/core"
	"incidentcore/pkg/domain"
)

// DefaultListLimit caps incident listings unless --limit says otherwise.
const DefaultListLimit = 50

type filterFlags struct {
	status      string
	typ         string
	author      string
	minSeverity int
	limit       int
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.status, "status", "", "only incidents in this state (pending|verified|flagged)")
	fs.StringVar(&f.typ, "type", "", "only incidents of this type (case-insensitive)")
	fs.StringVar(&f.author, "author", "", "only incidents reported by this user id")
	fs.IntVar(&f.minSeverity, "min-severity", 0, "only incidents at or above this severity")
	fs.IntVar(&f.limit, "limit", DefaultListLimit, "maximum number of incidents (0 for all)")
}

func (f *filterFlags) filter() domain.IncidentFilter {
	return domain.IncidentFilter{
		Status:      domain.IncidentStatus(f.status),
		Type:        f.typ,
		AuthorID:    f.author,
		MinSeverity: f.minSeverity,
		Limit:       f.limit,
	}
}

func (a *app) incidentCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "incident", Short: "Report, review, and query incidents"}

	var in domain.NewIncident
	var description string
	create := &cobra.Command{
		Use:   "create",
		Short: "Report a new incident; it starts pending",
		Args:  exactArgs(0),
		RunE: a.serviceRunE(func(ctx context.Context, svc *core.Service, cmd *cobra.Command, _ []string) error {
			in.Description = optionalString(cmd, "description", description)
			id, err := svc.CreateIncident(ctx, in)
			if err != nil {
				return err
			}
			return a.printer().id(id)
		}),
	}
	create.Flags().StringVar(&in.Type, "type", "", "incident type, e.g. fire (required)")
	create.Flags().StringVar(&description, "description", "", "free text description")
	create.Flags().Float64Var(&in.Latitude, "lat", 0, "latitude")
	create.Flags().Float64Var(&in.Longitude, "lng", 0, "longitude")
	create.Flags().IntVar(&in.Severity, "severity", domain.DefaultSeverity, "severity 1-5")
	create.Flags().StringVar(&in.AuthorID, "author", "", "reporting user id")
	_ = create.MarkFlagRequired("type")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one incident",
		Args:  exactArgs(1),
		RunE: a.serviceRunE(func(ctx context.Context, svc *core.Service, _ *cobra.Command, args []string) error {
			inc, err := svc.GetIncident(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printer().incident(inc)
		}),
	}

	var listFilter filterFlags
	list := &cobra.Command{
		Use:   "list",
		Short: "List incidents in report order",
		Args:  exactArgs(0),
		RunE: a.serviceRunE(func(ctx context.Context, svc *core.Service, _ *cobra.Command, _ []string) error {
			incidents, err := svc.ListIncidents(ctx, listFilter.filter())
			if err != nil {
				return err
			}
			return a.printer().incidents(incidents)
		}),
	}
	listFilter.register(list.Flags())

	verify := &cobra.Command{
		Use:   "verify <id>",
		Short: "Mark an incident verified and notify its author",
		Args:  exactArgs(1),
		RunE: a.serviceRunE(func(ctx context.Context, svc *core.Service, _ *cobra.Command, args []string) error {
			t, err := svc.VerifyIncident(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printer().transition(t)
		}),
	}

	var reason string
	flag := &cobra.Command{
		Use:   "flag <id>",
		Short: "Mark an incident flagged and notify its author",
		Args:  exactArgs(1),
		RunE: a.serviceRunE(func(ctx context.Context, svc *core.Service, _ *cobra.Command, args []string) error {
			t, err := svc.FlagIncident(ctx, args[0], reason)
			if err != nil {
				return err
			}
			return a.printer().transition(t)
		}),
	}
	flag.Flags().StringVar(&reason, "reason", "", "why the report was flagged")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an incident",
		Args:  exactArgs(1),
		RunE: a.serviceRunE(func(ctx context.Context, svc *core.Service, _ *cobra.Command, args []string) error {
			if err := svc.DeleteIncident(ctx, args[0]); err != nil {
				return err
			}
			return a.printer().ok("deleted", args[0])
		}),
	}

	zones := &cobra.Command{
		Use:   "zones",
		Short: "List danger zone markers",
		Args:  exactArgs(0),
		RunE: a.serviceRunE(func(ctx context.Context, svc *core.Service, _ *cobra.Command, _ []string) error {
			out, err := svc.DangerZones(ctx)
			if err != nil {
				return err
			}
			return a.printer().zones(out)
		}),
	}

	var lat, lng, radius float64
	var nearFilter filterFlags
	nearby := &cobra.Command{
		Use:   "nearby",
		Short: "List incidents around a point, closest first",
		Args:  exactArgs(0),
		RunE: a.serviceRunE(func(ctx context.Context, svc *core.Service, _ *cobra.Command, _ []string) error {
			out, err := svc.Nearby(ctx, lat, lng, radius, nearFilter.filter())
			if err != nil {
				return err
			}
			return a.printer().nearby(out)
		}),
	}
	nearby.Flags().Float64Var(&lat, "lat", 0, "latitude (required)")
	nearby.Flags().Float64Var(&lng, "lng", 0, "longitude (required)")
	nearby.Flags().Float64Var(&radius, "radius", core.DefaultNearbyRadius, "search radius in meters")
	_ = nearby.MarkFlagRequired("lat")
	_ = nearby.MarkFlagRequired("lng")
	nearFilter.register(nearby.Flags())

	cmd.AddCommand(create, get, list, verify, flag, del, zones, nearby)
	return cmd
}
