package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"modelforge/internal/artifact"
	"modelforge/internal/cmdqueue"
	"modelforge/internal/codegen"
	"modelforge/internal/db"
	"modelforge/internal/dsl"
	"modelforge/internal/reference"
	"modelforge/internal/store"
)

var fixedNow = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

const (
	invoiceModel     = "app/Models/Invoice.php"
	invoiceMigration = "database/migrations/2024_03_05_140709_create_invoices_table.php"
)

type fixture struct {
	svc   *Models
	st    *store.SQLStore
	files *artifact.LocalStore
	ran   []string
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	conn, err := db.Open(db.SQLite, "")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	st := store.New(conn, db.SQLite, zap.NewNop())
	types, err := reference.DefaultFieldTypes()
	require.NoError(t, err)
	require.NoError(t, st.Bootstrap(context.Background(), types))

	f := &fixture{st: st, files: &artifact.LocalStore{Root: t.TempDir()}}
	opts := Options{
		Layout: codegen.Layout{ModelsDir: "app/Models", MigrationsDir: "database/migrations"},
		Now:    func() time.Time { return fixedNow },
		Runner: func(_ context.Context, _ string, command string) ([]byte, error) {
			f.ran = append(f.ran, command)
			return nil, nil
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	f.svc = New(st, f.files, zap.NewNop(), opts)
	return f
}

func invoice() dsl.EntityDraft {
	zero := "0"
	return dsl.EntityDraft{
		Name:  "Invoice",
		Table: "invoices",
		Fields: []dsl.FieldDraft{
			{Name: "amount", Type: "decimal", Default: &zero},
			{Name: "customer_id", Type: "integer", Foreign: true, ForeignTable: "customers", ForeignKey: "id"},
		},
		Relations: []dsl.Relation{{Name: "customer", ForeignKey: "customer_id"}},
	}
}

func TestCreate_WritesBothArtifacts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, invoice())
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 2)
	assert.Equal(t, invoiceModel, res.Artifacts[0].Path)
	assert.Equal(t, invoiceMigration, res.Artifacts[1].Path)

	model, ok, err := f.files.ReadText(ctx, invoiceModel)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, model, "        'amount',\n        'customer_id',\n    ];")
	assert.Contains(t, model, `return $this->belongsTo(\App\Models\Customer::class, 'customer_id');`)

	migration, ok, err := f.files.ReadText(ctx, invoiceMigration)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, migration, "class CreateInvoicesTable extends Migration")
	assert.Contains(t, migration, "$table->decimal('amount');")
	assert.Contains(t, migration, "$table->foreignId('customer_id');")
	assert.Contains(t, migration, "$table->foreign('customer_id')->references('id')->on('customers');")
	assert.NotContains(t, migration, "->default(")

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, res.Entity.ID, list[0].ID)
}

func TestCreate_ExistingArtifactHasNoSideEffects(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.files.WriteText(ctx, invoiceModel, "hand written"))

	_, err := f.svc.Create(ctx, invoice())
	require.ErrorIs(t, err, ErrDuplicateArtifact)
	assert.Contains(t, err.Error(), "Invoice.php")

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	ok, err := f.files.Exists(ctx, invoiceMigration)
	require.NoError(t, err)
	assert.False(t, ok)

	text, _, _ := f.files.ReadText(ctx, invoiceModel)
	assert.Equal(t, "hand written", text)
}

func TestCreate_Presence(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Create(context.Background(), dsl.EntityDraft{Name: " ", Table: "posts"})
	require.ErrorIs(t, err, ErrInvalid)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.NotEmpty(t, ve.Issues)
	assert.Equal(t, "name", ve.Issues[0].Field)
}

func TestCreate_DuplicateName(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, invoice())
	require.NoError(t, err)

	f.svc.opts.Now = func() time.Time { return fixedNow.Add(time.Second) }
	d := invoice()
	d.Name = "Bill"
	_, err = f.svc.Create(ctx, d)
	assert.ErrorIs(t, err, store.ErrDuplicateName)

	ok, _ := f.files.Exists(ctx, "app/Models/Bill.php")
	assert.False(t, ok)
}

func TestCreate_DropsUnknownFieldTypes(t *testing.T) {
	f := newFixture(t, nil)
	d := invoice()
	d.Fields = append(d.Fields, dsl.FieldDraft{Name: "embedding", Type: "vector"})

	res, err := f.svc.Create(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, []string{"amount", "customer_id"}, res.Entity.FieldNames())
	assert.NotContains(t, res.Artifacts[0].Content, "embedding")
}

func TestCreate_NamelessRelationStillMarksForeignID(t *testing.T) {
	f := newFixture(t, nil)
	five := "5"
	d := dsl.EntityDraft{
		Name:      "Stock",
		Table:     "stocks",
		Fields:    []dsl.FieldDraft{{Name: "qty", Type: "Integer", Default: &five}},
		Relations: []dsl.Relation{{ForeignKey: "qty"}},
	}

	res, err := f.svc.Create(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, []string{"qty"}, res.Entity.FieldNames())
	assert.Equal(t, "integer", res.Entity.Fields[0].Type.ColumnType)

	migration := res.Artifacts[1].Content
	assert.Contains(t, migration, "$table->foreignId('qty')->default('5');")
	assert.NotContains(t, migration, "$table->integer('qty')")
	assert.NotContains(t, migration, "->on('")
	assert.NotContains(t, res.Artifacts[0].Content, "belongsTo")
}

func TestCreate_RunsPostCommands(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.PostCommands = []string{"php artisan optimize:clear", "composer dump-autoload"}
	})
	_, err := f.svc.Create(context.Background(), invoice())
	require.NoError(t, err)
	assert.Equal(t, []string{"php artisan optimize:clear", "composer dump-autoload"}, f.ran)
}

func TestCreate_PostCommandFailure(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.PostCommands = []string{"false"}
		o.Runner = func(context.Context, string, string) ([]byte, error) {
			return []byte("boom"), errors.New("exit status 1")
		}
	})
	_, err := f.svc.Create(context.Background(), invoice())

	var ce *cmdqueue.CommandError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "false", ce.Command)

	ok, _ := f.files.Exists(context.Background(), invoiceModel)
	assert.True(t, ok)
}

func TestShowPreviewGenerate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res, err := f.svc.Create(ctx, invoice())
	require.NoError(t, err)
	id := res.Entity.ID

	d, err := f.svc.Show(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, d.ModelFileContent)
	assert.Equal(t, res.Artifacts[0].Content, *d.ModelFileContent)
	assert.NotEmpty(t, d.FieldTypes)

	arts, err := f.svc.Preview(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, res.Artifacts, arts)

	_, err = f.svc.Generate(ctx, id)
	assert.ErrorIs(t, err, ErrDuplicateArtifact)

	_, err = f.svc.Show(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateAndDelete(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res, err := f.svc.Create(ctx, invoice())
	require.NoError(t, err)

	e, err := f.svc.Update(ctx, res.Entity.ID, dsl.EntityDraft{
		Name:   "Invoice",
		Table:  "invoices",
		Fields: []dsl.FieldDraft{{Name: "number", Type: "string"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"number"}, e.FieldNames())
	assert.Empty(t, e.Relations)

	_, err = f.svc.Update(ctx, "missing", invoice())
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, f.svc.Delete(ctx, res.Entity.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, res.Entity.ID), store.ErrNotFound)

	ok, _ := f.files.Exists(ctx, invoiceModel)
	assert.True(t, ok, "generated files outlive the description")
}

func TestLookup(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res, err := f.svc.Create(ctx, invoice())
	require.NoError(t, err)

	id, err := f.svc.Lookup(ctx, res.Entity.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Entity.ID, id)

	id, err = f.svc.Lookup(ctx, " INVOICE ")
	require.NoError(t, err)
	assert.Equal(t, res.Entity.ID, id)

	_, err = f.svc.Lookup(ctx, "Bill")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.svc.Lookup(ctx, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSearch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, p := range []string{"app/Models/User.php", "app/Models/UserProfile.php", "app/Models/Order.php", "app/Models/notes.txt"} {
		require.NoError(t, f.files.WriteText(ctx, p, "x"))
	}

	got, err := f.svc.Search(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, []string{"User", "UserProfile"}, got)

	got, err = f.svc.Search(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Order", "User", "UserProfile"}, got)

	got, err = f.svc.Search(ctx, "zzz")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestImport_ContinuesPastFailures(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	out := f.svc.Import(ctx, []dsl.EntityDraft{
		invoice(),
		{Name: "", Table: "x"},
		{Name: "Post", Table: "posts", Fields: []dsl.FieldDraft{{Name: "title", Type: "string"}}},
	})
	require.Len(t, out, 3)
	assert.NotEmpty(t, out[0].ID)
	assert.Empty(t, out[0].Error)
	assert.NotEmpty(t, out[1].Error)
	assert.NotEmpty(t, out[2].ID)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
