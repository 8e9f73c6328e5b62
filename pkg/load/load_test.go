package load

import (
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/red-hat-storage/cephci-tools/pkg/api"
	"github.com/red-hat-storage/cephci-tools/pkg/testhelper"
)

const pacificMetadata = `- name: Tier-0 Fs
  suite: suites/pacific/cephfs/tier-0_fs.yaml
  global-conf: conf/pacific/cephfs/tier-0_fs.yaml
  platform: rhel-8
  rhbuild: "5.3"
  inventory:
    openstack: conf/inventory/rhel-8-latest.yaml
  metadata:
    - tier-1
    - cephfs
- name: Tier-1 Rgw
  suite: suites/pacific/rgw/tier-1_rgw.yaml
  global-conf: conf/pacific/rgw/tier-1_rgw.yaml
  platform: rhel-8
  rhbuild: "5.3"
  inventory:
    openstack: conf/inventory/rhel-8-latest.yaml
  metadata:
    - tier-2
    - rgw
`

const quincyMetadata = `- name: Tier-0 Rbd
  suite: suites/quincy/rbd/tier-0_rbd.yaml
  global-conf: conf/quincy/rbd/tier-0_rbd.yaml
  platform: rhel-9
  rhbuild: "6.1"
  inventory:
    openstack: conf/inventory/rhel-9-latest.yaml
  metadata:
    - tier-0
    - rbd
`

func TestTable(t *testing.T) {
	fs := afero.NewMemMapFs()
	testhelper.WriteFiles(t, fs, map[string]string{"/catalogue/metadata/pacific.yaml": pacificMetadata})

	table, err := Table(fs, "/catalogue/metadata/pacific.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var names []string
	for _, record := range table {
		names = append(names, record.Name)
	}
	testhelper.Diff(t, "names", []string{"Tier-0 Fs", "Tier-1 Rgw"}, names)
	testhelper.Diff(t, "tags", api.Tags{"tier-1", "cephfs"}, table[0].Metadata)

	if _, err := Table(fs, "/catalogue/metadata/missing.yaml"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected a not exist error for a missing file, got %v", err)
	}
}

func TestTableInvalid(t *testing.T) {
	fs := afero.NewMemMapFs()
	testhelper.WriteFiles(t, fs, map[string]string{"/metadata.yaml": "name: not a sequence\n"})
	if _, err := Table(fs, "/metadata.yaml"); err == nil {
		t.Error("expected a mapping at the top level to be rejected")
	}
}

func TestTables(t *testing.T) {
	fs := afero.NewMemMapFs()
	testhelper.WriteFiles(t, fs, map[string]string{
		"/catalogue/metadata/quincy.yaml":         quincyMetadata,
		"/catalogue/metadata/pacific.yaml":        pacificMetadata,
		"/catalogue/metadata/README.md":           "# not a table",
		"/catalogue/metadata/..data/pacific.yaml": pacificMetadata,
		"/catalogue/metadata/.hidden-backup.yaml": pacificMetadata,
		"/catalogue/metadata/nested/reef.yml":     quincyMetadata,
	})

	tables, err := Tables(fs, "/catalogue/metadata")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var paths []string
	for _, table := range tables {
		paths = append(paths, table.Path)
	}
	testhelper.Diff(t, "paths", []string{
		"/catalogue/metadata/nested/reef.yml",
		"/catalogue/metadata/pacific.yaml",
		"/catalogue/metadata/quincy.yaml",
	}, paths)

	merged := Merge(tables)
	var names []string
	for _, record := range merged {
		names = append(names, record.Name)
	}
	testhelper.Diff(t, "merged names", []string{"Tier-0 Rbd", "Tier-0 Fs", "Tier-1 Rgw", "Tier-0 Rbd"}, names)
}

func TestSuiteAndGlobalConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	testhelper.WriteFiles(t, fs, map[string]string{
		"/suite.yaml": `tests:
  - test:
      name: setup install pre-requisistes
      module: install_prereq.py
      abort-on-fail: true
  - test:
      name: cluster deployment
      module: test_cephadm.py
      config:
        verify_cluster_health: true
`,
		"/conf.yaml": `globals:
  - ceph-cluster:
      name: ceph
`,
	})

	definition, err := Suite(fs, "/suite.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := &api.SuiteDefinition{Tests: []api.TestStep{
		{Name: "setup install pre-requisistes", Module: "install_prereq.py", AbortOnFail: true},
		{Name: "cluster deployment", Module: "test_cephadm.py", Config: map[string]interface{}{"verify_cluster_health": true}},
	}}
	if diff := cmp.Diff(expected, definition); diff != "" {
		t.Errorf("unexpected definition: %s", diff)
	}

	conf, err := GlobalConfig(fs, "/conf.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testhelper.Diff(t, "clusters", []string{"ceph"}, conf.Clusters())
}
