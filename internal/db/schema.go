package db

// Schema returns the description-store DDL. Types are kept to the subset both drivers accept.
func Schema() []string {
	return []string{
		`create table if not exists field_types (
  id text primary key,
  label text not null unique,
  column_type text not null unique,
  position integer not null default 0,
  created_at timestamp not null,
  updated_at timestamp not null
)`,
		`create table if not exists entities (
  id text primary key,
  name text not null unique,
  table_name text not null unique,
  fillable text not null default '[]',
  relations text not null default '[]',
  appends text not null default '[]',
  casts text not null default '[]',
  created_at timestamp not null,
  updated_at timestamp not null
)`,
		`create table if not exists entity_fields (
  id text primary key,
  entity_id text not null references entities(id) on delete cascade,
  field_type_id text not null references field_types(id) on delete cascade,
  position integer not null,
  name text not null,
  label text not null,
  default_value text null,
  nullable boolean not null default false,
  is_unique boolean not null default false,
  is_index boolean not null default false,
  is_primary boolean not null default false,
  auto_increment boolean not null default false,
  is_foreign boolean not null default false,
  foreign_table text null,
  foreign_key text null,
  created_at timestamp not null,
  updated_at timestamp not null,
  unique (entity_id, name)
)`,
		`create index if not exists entity_fields_entity_idx on entity_fields(entity_id, position)`,
	}
}
