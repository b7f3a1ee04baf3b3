package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcci/portal/core/company"
	"github.com/kcci/portal/core/reviewer"
	"github.com/kcci/portal/testutil"
)

func TestPublicApi_directory(t *testing.T) {
	resetDB()

	hanbit := testutil.CreateCompany(t, compRepo, "Hanbit Industries", "124-81-00998", company.TierSpecial)
	testutil.CreateCompany(t, compRepo, "Daeil Foods", "211-86-00002", company.TierRegular)
	seo := testutil.CreateReviewer(t, revRepo, "Kim Seo", "seo@test.kr", reviewer.GradeLead)

	rec := serve(http.MethodGet, "/api/public/companies?search=hanbit", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var comps []company.DirectoryEntry
	decode(t, rec, &comps)
	require.Len(t, comps, 1)
	assert.Equal(t, hanbit.ID, comps[0].ID)
	assert.Equal(t, company.TierSpecial, comps[0].Tier)

	rec = serve(http.MethodGet, "/api/public/companies", "")
	decode(t, rec, &comps)
	require.Len(t, comps, 2)
	assert.Equal(t, "Daeil Foods", comps[0].Name)

	rec = serve(http.MethodGet, "/api/public/reviewers", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var revs []reviewer.DirectoryEntry
	decode(t, rec, &revs)
	require.Len(t, revs, 1)
	assert.Equal(t, seo.ID, revs[0].ID)
	assert.NotContains(t, rec.Body.String(), "seo@test.kr")
}

func TestPages(t *testing.T) {
	resetDB()

	testutil.CreateCompany(t, compRepo, "Hanbit Industries", "124-81-00998", company.TierRegular)
	testutil.CreateReviewer(t, revRepo, "Kim Seo", "seo@test.kr", reviewer.GradeJunior)

	tests := []struct {
		name     string
		path     string
		contains []string
		excludes []string
	}{
		{name: "home", path: "/", contains: []string{conf.AppName, "Member companies: <strong>1</strong>", "Certified reviewers: <strong>1</strong>"}},
		{name: "about", path: "/about", contains: []string{conf.AppName}},
		{name: "members", path: "/members", contains: []string{"Hanbit Industries", "Kim Seo"}},
		{name: "members search", path: "/members?search=seo", contains: []string{"Kim Seo", "No member companies found."}, excludes: []string{"Hanbit Industries"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(http.MethodGet, tc.path, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
			for _, s := range tc.contains {
				assert.Contains(t, rec.Body.String(), s)
			}
			for _, s := range tc.excludes {
				assert.NotContains(t, rec.Body.String(), s)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	rec := serve(http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok", "build": "`+conf.Build+`", "env": "`+conf.Env+`"}`, rec.Body.String())
}
