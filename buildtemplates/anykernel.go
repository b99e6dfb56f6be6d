package buildtemplates

// based off the AnyKernel3 backend from https://github.com/osm0sis/AnyKernel3
const AnyKernelScript = `
#!/sbin/sh

### AnyKernel3 backend
properties() { '
kernel.string=<% .KernelName %> <% .KernelVersion %> (<% .VariantTag %>)
do.devicecheck=0
do.modules=0
do.systemless=1
do.cleanup=1
do.cleanuponabort=0
supported.versions=
supported.patchlevels=
'; }

block=auto
is_slot_device=auto
ramdisk_compression=auto
patch_vbmeta_flag=auto
no_block_display=1

. tools/ak3-core.sh

split_boot
flash_boot
`

const NotifySuccess = `
*<% .KernelName %> build finished*

Version: <% .KernelVersion %>
Variant: <% .VariantTag %>
<% if .SusfsVersion %>SUSFS: <% .SusfsVersion %>
<% end %>Toolchain: <% .Toolchain %>
Elapsed: <% .Elapsed %>
`

const NotifyFailure = `
*<% .KernelName %> build FAILED*

Variant: <% .VariantTag %>
Error: <% .Error %>
`
