package declarative

// acmeSeed declares the Acme tenant used across the package tests. alice
// reaches Viewer through Engineering ⊂ Acme-All and is also a direct
// member of Support, which revokes View Tenant.
const acmeSeed = `
apiVersion: iam/v1
kind: TenantSeed
tenant:
  name: Acme
  description: Acme Corp
  admin:
    email: admin@acme.test
    password:
      value: s3cret-Admin
users:
  - username: alice
    password:
      value: alice-pw
  - username: bob
    password:
      from_env: BOB_PASSWORD
    permissions:
      - name: View User
groups:
  - name: Engineering
    members:
      - name: alice
        type: user
  - name: Acme-All
    members:
      - name: Engineering
        type: group
      - name: bob
        type: user
roles:
  - name: Viewer
    description: Read-only access
    supports_nesting: true
    permissions:
      - name: View Tenant
    groups: [Acme-All]
  - name: Support
    description: Support staff
    permissions:
      - name: View Tenant
        revoke: true
    users: [alice]
`
