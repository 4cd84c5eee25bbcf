package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	goHMS "github.com/MrEthical07/goHMS"
	"github.com/MrEthical07/goHMS/internal/output"
)

type pageMeta struct {
	Total      int
	Page       int
	TotalPages int
}

// resourceOps erases the record types so one set of commands covers every collection.
type resourceOps interface {
	headers() []string
	list(ctx context.Context, p goHMS.ListParams) (any, [][]string, pageMeta, error)
	get(ctx context.Context, id string) (any, error)
	create(ctx context.Context, data []byte) (any, error)
	update(ctx context.Context, id string, patch []byte) (any, error)
	delete(ctx context.Context, id string) error
}

type collectionOps[T, In any] struct {
	col  *goHMS.Collection[T, In]
	cols []string
	row  func(*T) []string
}

func (o collectionOps[T, In]) headers() []string { return o.cols }

func (o collectionOps[T, In]) list(ctx context.Context, p goHMS.ListParams) (any, [][]string, pageMeta, error) {
	page, err := o.col.List(ctx, p)
	if err != nil {
		return nil, nil, pageMeta{}, err
	}
	rows := make([][]string, 0, len(page.Items))
	for i := range page.Items {
		rows = append(rows, o.row(&page.Items[i]))
	}
	return page, rows, pageMeta{Total: page.Total, Page: page.Page, TotalPages: page.TotalPages}, nil
}

func (o collectionOps[T, In]) get(ctx context.Context, id string) (any, error) {
	return o.col.Get(ctx, id)
}

func (o collectionOps[T, In]) create(ctx context.Context, data []byte) (any, error) {
	var in In
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("decoding %s input: %w", o.col.Resource(), err)
	}
	return o.col.Create(ctx, in)
}

// update applies patch as a JSON merge patch over the current record, so
// callers only name the fields they change.
func (o collectionOps[T, In]) update(ctx context.Context, id string, patch []byte) (any, error) {
	current, err := o.col.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	base, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	merged, err := mergePatch(base, patch)
	if err != nil {
		return nil, err
	}

	var in In
	if err := json.Unmarshal(merged, &in); err != nil {
		return nil, fmt.Errorf("decoding %s input: %w", o.col.Resource(), err)
	}
	return o.col.Update(ctx, id, in)
}

func (o collectionOps[T, In]) delete(ctx context.Context, id string) error {
	return o.col.Delete(ctx, id)
}

func (a *app) resources(client *goHMS.Client) map[string]resourceOps {
	p := a.printer
	return map[string]resourceOps{
		goHMS.ResourceProperties: collectionOps[goHMS.Property, goHMS.PropertyInput]{
			col:  client.Properties(),
			cols: []string{"ID", "TITLE", "TYPE", "CITY", "ACTIVE"},
			row: func(v *goHMS.Property) []string {
				return []string{v.ID, v.Title, string(v.Type), v.City, strconv.FormatBool(v.IsActive)}
			},
		},
		goHMS.ResourceBuildings: collectionOps[goHMS.Building, goHMS.BuildingInput]{
			col:  client.Buildings(),
			cols: []string{"ID", "NAME", "PROPERTY", "FLOORS", "CITY"},
			row: func(v *goHMS.Building) []string {
				city := "-"
				if v.Address != nil {
					city = v.Address.City
				}
				return []string{v.ID, v.Name, v.PropertyID, optInt(v.Floors), city}
			},
		},
		goHMS.ResourceUnits: collectionOps[goHMS.Unit, goHMS.UnitInput]{
			col:  client.Units(),
			cols: []string{"ID", "UNIT", "STATUS", "RENT", "PROPERTY"},
			row: func(v *goHMS.Unit) []string {
				return []string{v.ID, v.UnitNumber, p.Status(string(v.Status)), formatAmount(v.RentAmount), v.PropertyID}
			},
		},
		goHMS.ResourceLeases: collectionOps[goHMS.Lease, goHMS.LeaseInput]{
			col:  client.Leases(),
			cols: []string{"ID", "UNIT", "TENANT", "START", "END", "STATUS"},
			row: func(v *goHMS.Lease) []string {
				return []string{v.ID, v.UnitID, v.TenantID, v.StartDate, v.EndDate, p.Status(string(v.Status))}
			},
		},
		goHMS.ResourceTenants: collectionOps[goHMS.Tenant, goHMS.TenantInput]{
			col:  client.Tenants(),
			cols: []string{"ID", "USER", "MOVED IN", "MOVED OUT"},
			row: func(v *goHMS.Tenant) []string {
				return []string{v.ID, v.UserID, orDash(v.MovedInAt), orDash(v.MovedOutAt)}
			},
		},
	}
}

func resourceNames() []string {
	return []string{
		goHMS.ResourceProperties,
		goHMS.ResourceBuildings,
		goHMS.ResourceUnits,
		goHMS.ResourceLeases,
		goHMS.ResourceTenants,
	}
}

// lookup opens a signed-in client and resolves the resource argument.
func (a *app) lookup(ctx context.Context, name string) (resourceOps, error) {
	client, err := a.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	ops, ok := a.resources(client)[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown resource %q: must be one of %s", name, strings.Join(resourceNames(), ", "))
	}
	return ops, nil
}

func (a *app) listCmd() *cobra.Command {
	var (
		params  goHMS.ListParams
		filters []string
	)

	cmd := &cobra.Command{
		Use:       "list <resource>",
		Aliases:   []string{"ls"},
		Short:     "List a page of records",
		Example:   "  hms list units --filter status=OCCUPIED --page 2 --limit 50",
		Args:      cobra.ExactArgs(1),
		ValidArgs: resourceNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := a.lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			params.Filters, err = parseFilters(filters)
			if err != nil {
				return err
			}

			page, rows, meta, err := ops.list(cmd.Context(), params)
			if err != nil {
				return describeError(err)
			}
			if a.printer.JSON() {
				return a.printer.WriteJSON(page)
			}

			t := output.NewTable(a.printer.Out(), ops.headers())
			for _, r := range rows {
				t.AddRow(r)
			}
			if err := t.Render(); err != nil {
				return err
			}
			a.printer.Print("%s", a.printer.Dim(fmt.Sprintf("page %d of %d, %d total", meta.Page, max(meta.TotalPages, 1), meta.Total)))
			return nil
		},
	}

	cmd.Flags().IntVar(&params.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&params.Limit, "limit", 0, "page size (default from config)")
	cmd.Flags().StringVar(&params.Search, "search", "", "free text search")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "field=value filter, repeatable")
	return cmd
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <resource> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := a.lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rec, err := ops.get(cmd.Context(), args[1])
			if err != nil {
				return describeError(err)
			}
			return a.printer.WriteJSON(rec)
		},
	}
}

func (a *app) createCmd() *cobra.Command {
	var data, file string

	cmd := &cobra.Command{
		Use:     "create <resource>",
		Short:   "Create a record from JSON",
		Example: `  hms create properties --file property.json` + "\n" + `  echo '{"userId":"..."}' | hms create tenants --file -`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBody(cmd.InOrStdin(), data, file)
			if err != nil {
				return err
			}
			ops, err := a.lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rec, err := ops.create(cmd.Context(), body)
			if err != nil {
				return describeError(err)
			}
			return a.printRecord(rec, "Created %s", args[0])
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "inline JSON body")
	cmd.Flags().StringVar(&file, "file", "", "JSON file, - for stdin")
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	var data, file string

	cmd := &cobra.Command{
		Use:   "update <resource> <id>",
		Short: "Update a record with a JSON merge patch",
		Long: `Update fetches the record, applies the given JSON as a merge patch and
sends the complete result. Fields set to null are removed.`,
		Example: `  hms update units 91ac... --data '{"status": "MAINTENANCE"}'`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := readBody(cmd.InOrStdin(), data, file)
			if err != nil {
				return err
			}
			ops, err := a.lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rec, err := ops.update(cmd.Context(), args[1], patch)
			if err != nil {
				return describeError(err)
			}
			return a.printRecord(rec, "Updated %s", args[0])
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "inline JSON patch")
	cmd.Flags().StringVar(&file, "file", "", "JSON patch file, - for stdin")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <resource> <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a record",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := a.lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := ops.delete(cmd.Context(), args[1]); err != nil {
				return describeError(err)
			}
			a.printer.Success("Deleted %s %s", args[0], args[1])
			return nil
		},
	}
}

func (a *app) resourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List resources and the actions the signed-in user may perform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}

			type entry struct {
				Resource string   `json:"resource"`
				Scope    string   `json:"scope"`
				Actions  []string `json:"actions"`
			}
			var entries []entry
			for _, name := range resourceNames() {
				e := entry{Resource: name, Scope: "-"}
				if scope, ok := client.PermissionScope(name); ok {
					e.Scope = string(scope)
				}
				for _, action := range []string{"view", "create", "update", "delete", "approve"} {
					if client.HasPermission(name, action) {
						e.Actions = append(e.Actions, action)
					}
				}
				entries = append(entries, e)
			}

			if a.printer.JSON() {
				return a.printer.WriteJSON(entries)
			}
			t := output.NewTable(a.printer.Out(), []string{"RESOURCE", "SCOPE", "ACTIONS"})
			for _, e := range entries {
				t.AddRow([]string{e.Resource, e.Scope, orDash(strings.Join(e.Actions, ", "))})
			}
			return t.Render()
		},
	}
}

func (a *app) printRecord(rec any, format string, args ...any) error {
	if !a.printer.JSON() {
		a.printer.Success(format, args...)
	}
	return a.printer.WriteJSON(rec)
}

func readBody(in io.Reader, data, file string) ([]byte, error) {
	switch {
	case data != "" && file != "":
		return nil, errors.New("use either --data or --file")
	case data != "":
		return []byte(data), nil
	case file == "-":
		return io.ReadAll(in)
	case file != "":
		return os.ReadFile(file)
	}
	return nil, errors.New("a JSON body is required: use --data or --file")
}

// parseFilters turns repeated key=value flags into list filters. A repeated
// key becomes a multi-valued filter.
func parseFilters(raw []string) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(raw))
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid filter %q: want field=value", kv)
		}
		switch prev := out[k].(type) {
		case nil:
			out[k] = v
		case string:
			out[k] = []string{prev, v}
		case []string:
			out[k] = append(prev, v)
		}
	}
	return out, nil
}

// mergePatch applies patch to doc following JSON merge patch rules: objects
// merge recursively, null deletes, anything else replaces.
func mergePatch(doc, patch []byte) ([]byte, error) {
	var target, p any
	if err := json.Unmarshal(doc, &target); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	if err := json.Unmarshal(patch, &p); err != nil {
		return nil, fmt.Errorf("decoding patch: %w", err)
	}
	return json.Marshal(mergeValue(target, p))
}

func mergeValue(target, patch any) any {
	pm, ok := patch.(map[string]any)
	if !ok {
		return patch
	}
	tm, ok := target.(map[string]any)
	if !ok {
		tm = map[string]any{}
	}
	for k, v := range pm {
		if v == nil {
			delete(tm, k)
			continue
		}
		tm[k] = mergeValue(tm[k], v)
	}
	return tm
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
