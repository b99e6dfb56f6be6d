package stack

import (
	"fmt"
	"os"
	"path"

	"github.com/jhoonb/archivex"
	log "github.com/sirupsen/logrus"

	"github.io/gnu3ra/kernelstack/buildtemplates"
	"github.io/gnu3ra/kernelstack/utils"
	"github.io/gnu3ra/kernelstack/variant"
)

// artifacts lists what one packaging pass produced, for the metadata file.
type artifacts struct {
	Zip   string
	Image string
	Boot  string
}

// packageName is the artifact naming convention: kernel name, kernel
// version, then the variant tag, which both the flashable zip and the signed
// boot image derive their names from.
func (s *KernelStack) packageName() string {
	return fmt.Sprintf("%s-%s-%s", s.config.Name, s.kernelVer, s.variant.Tag())
}

func (s *KernelStack) packageArtifacts() (*artifacts, error) {
	image := path.Join(s.sourceDir(), "out", "arch", s.config.Arch, "boot", "Image")
	if _, err := os.Stat(image); err != nil {
		return nil, fmt.Errorf("compiled image missing at %s: %w", image, err)
	}

	out := &artifacts{}

	zipPath, err := s.packageZip(image)
	if err != nil {
		return nil, err
	}
	out.Zip = zipPath

	gz, err := s.compressImage(image)
	if err != nil {
		return nil, err
	}
	out.Image = gz

	if s.config.SignKey != "" {
		boot, err := s.signBootImage(image)
		if err != nil {
			return nil, err
		}
		out.Boot = boot
	}

	return out, nil
}

// packageZip stages an AnyKernel3 flashable zip: the rendered backend script
// plus the raw image, named by the packaging convention.
func (s *KernelStack) packageZip(image string) (string, error) {
	staging := path.Join(s.statePath, "sources", "anykernel")
	if err := os.MkdirAll(staging, 0755); err != nil {
		return "", err
	}

	script, err := utils.RenderTemplate(buildtemplates.AnyKernelScript, map[string]string{
		"KernelName":    s.config.Name,
		"KernelVersion": s.kernelVer,
		"VariantTag":    s.variant.Tag(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render anykernel script: %w", err)
	}
	if err := os.WriteFile(path.Join(staging, "anykernel.sh"), script, 0755); err != nil {
		return "", err
	}
	if err := utils.CopyFile(path.Join(staging, "Image"), image); err != nil {
		return "", err
	}

	zipPath := path.Join(s.releaseDir(), s.packageName()+".zip")
	zip := new(archivex.ZipFile)
	if err := zip.Create(zipPath); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", zipPath, err)
	}
	if err := zip.AddAll(staging, false); err != nil {
		zip.Close()
		return "", fmt.Errorf("failed to pack %s: %w", zipPath, err)
	}
	if err := zip.Close(); err != nil {
		return "", err
	}

	log.Infof("packaged %s", zipPath)
	return zipPath, nil
}

func (s *KernelStack) compressImage(image string) (string, error) {
	dest := path.Join(s.releaseDir(), s.packageName()+"-Image")
	if err := utils.CopyFile(dest, image); err != nil {
		return "", err
	}
	if err := utils.RunCommand(s.releaseDir(), nil, "gzip", "-9", "-f", dest); err != nil {
		return "", &variant.ExternalToolFailureError{Tool: "gzip", Err: err}
	}
	return dest + ".gz", nil
}

// signBootImage wraps the image into a boot image and gives it an AVB hash
// footer. Both tools are opaque collaborators; only exit status matters.
func (s *KernelStack) signBootImage(image string) (string, error) {
	boot := path.Join(s.releaseDir(), s.packageName()+"-boot.img")
	if err := utils.RunCommand(s.releaseDir(), nil, "mkbootimg",
		"--kernel", image,
		"--header_version", "4",
		"-o", boot); err != nil {
		return "", &variant.ExternalToolFailureError{Tool: "mkbootimg", Err: err}
	}
	if err := utils.RunCommand(s.releaseDir(), nil, "avbtool", "add_hash_footer",
		"--partition_name", "boot",
		"--partition_size", "67108864",
		"--algorithm", "SHA256_RSA2048",
		"--key", s.config.SignKey,
		"--image", boot); err != nil {
		return "", &variant.ExternalToolFailureError{Tool: "avbtool", Err: err}
	}
	log.Infof("signed %s", boot)
	return boot, nil
}
