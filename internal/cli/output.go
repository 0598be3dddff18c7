package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"incidentcore/internal/core"
	"incidentcore/pkg/domain"
)

// printer renders results either as indented JSON or as aligned text tables.
type printer struct {
	w    io.Writer
	json bool
	now  func() time.Time
}

func (a *app) printer() *printer {
	return &printer{w: a.stdout, json: a.opts.Format == "json", now: time.Now}
}

func (p *printer) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, p.now(), "ago", "from now")
}

func (p *printer) table(header string, rows func(w io.Writer)) error {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	return tw.Flush()
}

func (p *printer) id(id string) error {
	if p.json {
		return p.encode(map[string]string{"id": id})
	}
	_, err := fmt.Fprintln(p.w, id)
	return err
}

func (p *printer) users(users []domain.User) error {
	if p.json {
		return p.encode(users)
	}
	return p.table("ID\tEMAIL\tNAME\tCREATED", func(w io.Writer) {
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Email, optional(u.Name), p.ago(u.CreatedAt))
		}
	})
}

func (p *printer) incidents(incidents []domain.Incident) error {
	if p.json {
		return p.encode(incidents)
	}
	return p.table("ID\tTYPE\tSEVERITY\tSTATUS\tLOCATION\tAUTHOR\tCREATED", func(w io.Writer) {
		for _, inc := range incidents {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
				inc.ID, inc.Type, inc.Severity, inc.Status(), coords(inc.Latitude, inc.Longitude),
				orDash(inc.AuthorID), p.ago(inc.CreatedAt))
		}
	})
}

func (p *printer) incident(inc domain.Incident) error {
	if p.json {
		return p.encode(inc)
	}
	return p.table("FIELD\tVALUE", func(w io.Writer) {
		fmt.Fprintf(w, "id\t%s\n", inc.ID)
		fmt.Fprintf(w, "type\t%s\n", inc.Type)
		fmt.Fprintf(w, "description\t%s\n", optional(inc.Description))
		fmt.Fprintf(w, "severity\t%d\n", inc.Severity)
		fmt.Fprintf(w, "status\t%s\n", inc.Status())
		fmt.Fprintf(w, "location\t%s\n", coords(inc.Latitude, inc.Longitude))
		fmt.Fprintf(w, "author\t%s\n", orDash(inc.AuthorID))
		fmt.Fprintf(w, "created\t%s\n", p.ago(inc.CreatedAt))
	})
}

func (p *printer) nearby(out []core.NearbyIncident) error {
	if p.json {
		return p.encode(out)
	}
	return p.table("ID\tTYPE\tSEVERITY\tSTATUS\tDISTANCE", func(w io.Writer) {
		for _, n := range out {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", n.ID, n.Type, n.Severity, n.Status(), humanize.SIWithDigits(n.DistanceMeters, 1, "m"))
		}
	})
}

func (p *printer) zones(zones []domain.DangerZone) error {
	if p.json {
		return p.encode(zones)
	}
	return p.table("ID\tTYPE\tSEVERITY\tAPPROVED\tLOCATION", func(w io.Writer) {
		for _, z := range zones {
			fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\n", z.ID, z.Type, z.Severity, z.Approved, coords(z.Lat, z.Lng))
		}
	})
}

func (p *printer) transition(t core.Transition) error {
	if p.json {
		return p.encode(t)
	}
	if !t.Changed {
		_, err := fmt.Fprintf(p.w, "%s already %s\n", t.ID, t.To)
		return err
	}
	_, err := fmt.Fprintf(p.w, "%s %s -> %s\n", t.ID, t.From, t.To)
	return err
}

func (p *printer) notifications(notes []domain.Notification) error {
	if p.json {
		return p.encode(notes)
	}
	return p.table("ID\tINCIDENT\tKIND\tREAD\tMESSAGE\tCREATED", func(w io.Writer) {
		for _, n := range notes {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n", n.ID, n.IncidentID, n.Kind, n.Read, n.Message, p.ago(n.CreatedAt))
		}
	})
}

func (p *printer) ok(what, id string) error {
	if p.json {
		return p.encode(map[string]string{"id": id, "status": "ok"})
	}
	_, err := fmt.Fprintf(p.w, "%s %s\n", what, id)
	return err
}

func coords(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', 5, 64) + "," + strconv.FormatFloat(lng, 'f', 5, 64)
}

func optional(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageError("%s accepts %d arg(s), received %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

// optionalString returns nil unless the flag was given explicitly.
func optionalString(cmd *cobra.Command, name, value string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}
